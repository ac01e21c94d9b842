package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"kepler-fleet/internal/logging"
	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/catalog"
)

// Multipart field names of a model upload.
const (
	fieldConfig    = "configFile"
	fieldWeights   = "weightsFile"
	fieldNames     = "namesFile"
	fieldModelData = "modelData"
)

type ModelHandler struct {
	models *catalog.Registry
}

func NewModelHandler(reg *catalog.Registry) *ModelHandler {
	return &ModelHandler{models: reg}
}

type ModelListResponse struct {
	Models []models.Model `json:"models"`
}

type ModelResponse struct {
	Status string       `json:"status" example:"ok"`
	Model  models.Model `json:"model"`
}

// ListModels lists the catalog
// @Summary List models
// @Description Built-in models followed by custom ones
// @Tags models
// @Produce json
// @Success 200 {object} ModelListResponse
// @Router /api/models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, ModelListResponse{Models: h.models.List()})
}

// ModelNames lists a model's labels
// @Summary Model labels
// @Tags models
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} catalog.NamesResult
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/models/{id}/names [get]
func (h *ModelHandler) ModelNames(c *gin.Context) {
	res, err := h.models.Names(c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to read model labels")
		return
	}
	c.JSON(http.StatusOK, res)
}

// AddModel registers a model whose files already exist
// @Summary Add a model
// @Tags models
// @Accept json
// @Produce json
// @Param request body models.ModelInput true "Model"
// @Success 200 {object} ModelResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/models [post]
func (h *ModelHandler) AddModel(c *gin.Context) {
	var in models.ModelInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	m, err := h.models.Add(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "Failed to add model")
		return
	}
	c.JSON(http.StatusOK, ModelResponse{Status: "ok", Model: m})
}

// UploadModel registers a model from uploaded files
// @Summary Upload a model
// @Description Multipart upload of .cfg and .weights files plus an optional .names file
// @Tags models
// @Accept multipart/form-data
// @Produce json
// @Param configFile formData file true "Network config (.cfg)"
// @Param weightsFile formData file true "Weights (.weights)"
// @Param namesFile formData file false "Labels (.names)"
// @Param modelData formData string true "JSON with name and description"
// @Success 200 {object} ModelResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/models/upload [post]
func (h *ModelHandler) UploadModel(c *gin.Context) {
	form, meta, ok := parseUpload(c)
	if !ok {
		return
	}
	files, pending, ok := h.planUploads(c, form, "")
	if !ok {
		return
	}
	if err := catalog.ValidateUpload(files, meta); err != nil {
		respondError(c, err, "Rejected model upload")
		return
	}
	saved, ok := h.writeUploads(c, pending)
	if !ok {
		return
	}

	m, err := h.models.UploadAdd(c.Request.Context(), files, meta)
	if err != nil {
		h.models.DiscardUploads(saved)
		respondError(c, err, "Failed to upload model")
		return
	}
	logging.Info(c).Str("model_id", m.ID).Msg("Model uploaded")
	c.JSON(http.StatusOK, ModelResponse{Status: "ok", Model: m})
}

// UpdateModel edits a custom model
// @Summary Update a custom model
// @Description Metadata and, optionally, replacement files
// @Tags models
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Model ID"
// @Param configFile formData file false "Network config (.cfg)"
// @Param weightsFile formData file false "Weights (.weights)"
// @Param namesFile formData file false "Labels (.names)"
// @Param modelData formData string false "JSON with name and description"
// @Success 200 {object} ModelResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/models/{id} [put]
func (h *ModelHandler) UpdateModel(c *gin.Context) {
	id := c.Param("id")
	logging.SetModel(c, id)
	if !models.IsCustom(id) {
		badRequest(c, "only custom models can be edited")
		return
	}
	if _, err := h.models.Get(id); err != nil {
		respondError(c, err, "Failed to update model")
		return
	}
	form, meta, ok := parseUpload(c)
	if !ok {
		return
	}
	files, pending, ok := h.planUploads(c, form, id)
	if !ok {
		return
	}
	saved, ok := h.writeUploads(c, pending)
	if !ok {
		return
	}

	m, err := h.models.Update(c.Request.Context(), id, meta, files)
	if err != nil {
		h.models.DiscardUploads(saved)
		respondError(c, err, "Failed to update model")
		return
	}
	c.JSON(http.StatusOK, ModelResponse{Status: "ok", Model: m})
}

// DeleteModel removes a custom model
// @Summary Delete a custom model
// @Description Removes its uploaded files and clears camera references
// @Tags models
// @Param id path string true "Model ID"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/models/{id} [delete]
func (h *ModelHandler) DeleteModel(c *gin.Context) {
	id := c.Param("id")
	logging.SetModel(c, id)
	if err := h.models.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete model")
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// parseUpload parses the multipart body and decodes the optional modelData
// field. The response is written when it fails.
func parseUpload(c *gin.Context) (*multipart.Form, models.ModelInput, bool) {
	var meta models.ModelInput
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "upload exceeds the size limit"})
		} else {
			badRequest(c, "multipart form expected: "+err.Error())
		}
		return nil, meta, false
	}
	if raw := form.Value[fieldModelData]; len(raw) > 0 && raw[0] != "" {
		if err := json.Unmarshal([]byte(raw[0]), &meta); err != nil {
			badRequest(c, "modelData must be a JSON object")
			return nil, meta, false
		}
	}
	return form, meta, true
}

type upload struct {
	header *multipart.FileHeader
	abs    string
	rel    string
}

// planUploads resolves where every uploaded model file goes without writing
// anything. owner is the model being edited, empty for a new one.
func (h *ModelHandler) planUploads(c *gin.Context, form *multipart.Form, owner string) (models.ModelFiles, []upload, bool) {
	var files models.ModelFiles
	var pending []upload
	for _, f := range []struct {
		field string
		dst   *string
	}{
		{fieldConfig, &files.Config},
		{fieldWeights, &files.Weights},
		{fieldNames, &files.Names},
	} {
		headers := form.File[f.field]
		if len(headers) == 0 {
			continue
		}
		abs, rel, err := h.models.UploadTarget(headers[0].Filename, owner)
		if err != nil {
			respondError(c, err, "Rejected model upload")
			return files, nil, false
		}
		*f.dst = rel
		pending = append(pending, upload{header: headers[0], abs: abs, rel: rel})
	}
	return files, pending, true
}

// writeUploads stores the planned files and returns their catalog paths.
func (h *ModelHandler) writeUploads(c *gin.Context, pending []upload) ([]string, bool) {
	saved := make([]string, 0, len(pending))
	for _, u := range pending {
		if err := c.SaveUploadedFile(u.header, u.abs); err != nil {
			h.models.DiscardUploads(saved)
			respondError(c, err, "Failed to store uploaded file")
			return nil, false
		}
		saved = append(saved, u.rel)
	}
	return saved, true
}
