package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/menycars/copiloto/internal/services"
	"github.com/menycars/copiloto/internal/storage"
	"github.com/menycars/copiloto/internal/utils"
)

type VehicleHandler struct {
	inventory services.InventoryService
	uploader  storage.Uploader
}

func NewVehicleHandler(inventory services.InventoryService, uploader storage.Uploader) *VehicleHandler {
	return &VehicleHandler{inventory: inventory, uploader: uploader}
}

func (h *VehicleHandler) List(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := h.inventory.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": rows})
}

func (h *VehicleHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	v, err := h.inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// UploadPhoto receives a multipart photo, stores it and attaches the
// resulting URL to the vehicle.
func (h *VehicleHandler) UploadPhoto(c *gin.Context) {
	const op = "VehicleHandler.UploadPhoto"

	if _, ok := requireUserID(c); !ok {
		return
	}

	id := c.Param("id")
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "photo file is required", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := "vehicles/" + id + "/" + uuid.NewString() + filepath.Ext(header.Filename)
	url, err := h.uploader.Upload(c.Request.Context(), objectName, contentType, file)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to store photo", err))
		return
	}

	v, err := h.inventory.AddPhoto(c.Request.Context(), id, url)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
