package handlers

import (
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/storeit/backend/internal/middleware"
	"github.com/storeit/backend/internal/services"
	"github.com/storeit/backend/pkg/utils"
)

const maxListLimit = 500

type FilesHandler struct {
	Files *services.FileService
	Views *services.ViewVersions
}

func NewFilesHandler(files *services.FileService, views *services.ViewVersions) *FilesHandler {
	return &FilesHandler{Files: files, Views: views}
}

type renameRequest struct {
	Name      string  `json:"name"`
	Extension *string `json:"extension"`
}

type collaboratorsRequest struct {
	Emails []string `json:"emails"`
}

type removeCollaboratorRequest struct {
	Email   string   `json:"email"`
	Current []string `json:"current"`
}

type actionRequest struct {
	Action    string   `json:"action"`
	Name      string   `json:"name"`
	Extension string   `json:"extension"`
	Emails    []string `json:"emails"`
	Email     string   `json:"email"`
}

func (h *FilesHandler) setViewVersion(c *fiber.Ctx) {
	c.Set(ViewVersionHeader, strconv.FormatUint(h.Views.Version(middleware.RequestPath(c)), 10))
}

// List returns the files visible to the caller. types takes precedence over
// section; query matches names case-insensitively.
func (h *FilesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	filter := services.ListFilter{
		SearchText: strings.TrimSpace(c.Query("query")),
		Sort:       c.Query("sort", services.DefaultSort),
		Limit:      c.QueryInt("limit", 0),
	}
	if raw := c.Query("types"); raw != "" {
		filter.Types = services.ParseFileTypes(raw)
	} else if section := c.Query("section"); section != "" {
		filter.Types = services.TypesForSection(section)
	}
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	files, err := h.Files.ListFiles(c.UserContext(), currentUser, filter)
	if err != nil {
		return respondError(c, err, "failed listing files")
	}

	h.setViewVersion(c)
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"documents": files,
		"total":     len(files),
	})
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." || filename == "/" {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	record, err := h.Files.Upload(c.UserContext(), services.UploadInput{
		Reader:      stream,
		Size:        fileHeader.Size,
		Name:        filename,
		ContentType: contentType,
		OwnerID:     currentUser.ID,
		AccountID:   currentUser.AccountID,
		Path:        middleware.RequestPath(c),
		IPAddress:   c.IP(),
	})
	if err != nil {
		return respondError(c, err, "failed uploading file")
	}

	h.setViewVersion(c)
	return utils.Success(c, fiber.StatusCreated, record)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	record, err := h.Files.Get(c.UserContext(), currentUser, c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed loading file")
	}
	return utils.Success(c, fiber.StatusOK, record)
}

func (h *FilesHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	url, err := h.Files.DownloadURL(c.UserContext(), currentUser, c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed generating download url")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	url, err := h.Files.DownloadURL(c.UserContext(), currentUser, c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed generating download url")
	}
	return c.Redirect(url, fiber.StatusFound)
}

// Rename keeps the stored extension when the body omits one.
func (h *FilesHandler) Rename(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	fileID := c.Params("id")
	var extension string
	if req.Extension != nil {
		extension = strings.TrimSpace(*req.Extension)
	} else {
		existing, err := h.Files.Get(c.UserContext(), currentUser, fileID)
		if err != nil {
			return respondError(c, err, "failed loading file")
		}
		extension = existing.Extension
	}

	record, err := h.Files.Rename(c.UserContext(), currentUser, fileID, name, extension, middleware.RequestPath(c), c.IP())
	if err != nil {
		return respondError(c, err, "failed renaming file")
	}

	h.setViewVersion(c)
	return utils.Success(c, fiber.StatusOK, record)
}

func (h *FilesHandler) UpdateCollaborators(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req collaboratorsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.Files.UpdateCollaborators(c.UserContext(), currentUser, c.Params("id"), cleanEmails(req.Emails), middleware.RequestPath(c), c.IP())
	if err != nil {
		return respondError(c, err, "failed updating collaborators")
	}

	h.setViewVersion(c)
	return utils.Success(c, fiber.StatusOK, record)
}

// RemoveCollaborator filters email out of current when the client sends the
// list it is looking at, and out of the stored list otherwise.
func (h *FilesHandler) RemoveCollaborator(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req removeCollaboratorRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	email := services.NormalizeEmail(req.Email)
	if email == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}
	var current []string
	if req.Current != nil {
		current = cleanEmails(req.Current)
	}

	record, err := h.Files.RemoveCollaborator(c.UserContext(), currentUser, c.Params("id"), current, email, middleware.RequestPath(c), c.IP())
	if err != nil {
		return respondError(c, err, "failed removing collaborator")
	}

	h.setViewVersion(c)
	return utils.Success(c, fiber.StatusOK, record)
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID := c.Params("id")
	if err := h.Files.Delete(c.UserContext(), currentUser, fileID, middleware.RequestPath(c), c.IP()); err != nil {
		return respondError(c, err, "failed deleting file")
	}

	h.setViewVersion(c)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"status": "success"})
}

// Action dispatches one of the file actions by name.
func (h *FilesHandler) Action(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req actionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	action, err := services.ParseFileAction(strings.TrimSpace(req.Action), strings.TrimSpace(req.Name), strings.TrimSpace(req.Extension), cleanEmails(req.Emails), services.NormalizeEmail(req.Email))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.Files.Apply(c.UserContext(), currentUser, c.Params("id"), action, middleware.RequestPath(c), c.IP())
	if err != nil {
		return respondError(c, err, "failed applying file action")
	}

	h.setViewVersion(c)
	if record == nil {
		return utils.Success(c, fiber.StatusOK, fiber.Map{"status": "success"})
	}
	return utils.Success(c, fiber.StatusOK, record)
}

func (h *FilesHandler) Usage(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	summary, err := h.Files.ComputeStorageUsage(c.UserContext(), currentUser)
	if err != nil {
		return respondError(c, err, "failed computing storage usage")
	}
	return utils.Success(c, fiber.StatusOK, summary)
}
