package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/lesson"
	"github.com/guriuo/hiigsitech/internal/logger"
	"github.com/guriuo/hiigsitech/internal/services"
	"github.com/guriuo/hiigsitech/internal/storage"
)

type API struct {
	files    *storage.FileManager
	learning *services.LearningService
	comments *services.CommentService
	contact  *services.ContactService
	pdf      *services.PDFService
	share    *services.ShareService
	log      *logger.Logger
}

func NewAPI(fm *storage.FileManager, learning *services.LearningService, comments *services.CommentService, contact *services.ContactService, pdf *services.PDFService, share *services.ShareService, log *logger.Logger) *API {
	return &API{files: fm, learning: learning, comments: comments, contact: contact, pdf: pdf, share: share, log: log}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.GET("/posts/:id/comments", api.handleListComments)
		apiGroup.POST("/comment", api.handleSubmitComment)
		apiGroup.POST("/contact", api.handleContact)

		learner := apiGroup.Group("", RequireLearner())
		learner.GET("/progress", api.handleProgress)
		learner.GET("/courses/:slug/lessons", api.handleOpenLesson)
		learner.GET("/courses/:slug/lessons/:lesson", api.handleOpenLesson)
		learner.POST("/courses/:slug/lessons/:lesson/complete", api.handleComplete)
		learner.POST("/courses/:slug/lessons/:lesson/next", api.handleStep(true))
		learner.POST("/courses/:slug/lessons/:lesson/prev", api.handleStep(false))
		learner.PUT("/courses/:slug/lessons/:lesson/notes", api.handleUpdateNotes)
		learner.POST("/courses/:slug/exports", api.handleCreateExport)
	}

	r.GET("/exports/:slug/:learner", api.handleServeExport)
}

// lessonResponse is the navigator view plus whether the requested lesson
// reference matched a lesson of the course.
type lessonResponse struct {
	lesson.View
	Resolved bool  `json:"resolved"`
	Moved    *bool `json:"moved,omitempty"`
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleOpenLesson(c *gin.Context) {
	nav, ok := a.navigator(c)
	if !ok {
		return
	}

	ref := c.Param("lesson")
	if ref == "" {
		ref = c.Query("lesson")
	}
	resolved := nav.Open(c.Request.Context(), ref)
	c.JSON(http.StatusOK, lessonResponse{View: nav.Snapshot(), Resolved: resolved})
}

func (a *API) handleComplete(c *gin.Context) {
	nav, ok := a.openExisting(c)
	if !ok {
		return
	}

	nav.MarkComplete(c.Request.Context())
	c.JSON(http.StatusOK, lessonResponse{View: nav.Snapshot(), Resolved: true})
}

func (a *API) handleStep(forward bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		nav, ok := a.openExisting(c)
		if !ok {
			return
		}

		var moved bool
		if forward {
			moved = nav.Advance(c.Request.Context())
		} else {
			moved = nav.Retreat(c.Request.Context())
		}
		c.JSON(http.StatusOK, lessonResponse{View: nav.Snapshot(), Resolved: true, Moved: &moved})
	}
}

func (a *API) handleUpdateNotes(c *gin.Context) {
	var payload struct {
		Notes *string `json:"notes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	nav, ok := a.openExisting(c)
	if !ok {
		return
	}

	nav.UpdateNote(c.Request.Context(), *payload.Notes)
	c.JSON(http.StatusOK, lessonResponse{View: nav.Snapshot(), Resolved: true})
}

func (a *API) handleProgress(c *gin.Context) {
	slugs := c.QueryArray("course")
	if len(slugs) == 0 {
		respondMessage(c, http.StatusBadRequest, "at least one course is required")
		return
	}

	overview, err := a.learning.Overview(c.Request.Context(), learnerFrom(c), slugs)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": overview})
}

func (a *API) handleCreateExport(c *gin.Context) {
	slug := c.Param("slug")
	learner := learnerFrom(c)
	if _, err := a.learning.Navigator(c.Request.Context(), learner, slug); err != nil {
		a.respondServiceError(c, err)
		return
	}

	url, expiresAt := a.share.Generate(slug, learner)
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresAt": expiresAt.UTC()})
}

func (a *API) handleServeExport(c *gin.Context) {
	slug := c.Param("slug")
	learner := c.Param("learner")
	expiresParam := c.Query("exp")
	signature := c.Query("sig")

	if expiresParam == "" || signature == "" {
		respondMessage(c, http.StatusBadRequest, "missing signature")
		return
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}

	if a.share.Expired(expires) {
		respondMessage(c, http.StatusGone, "link expired")
		return
	}

	if !a.share.Validate(services.ExportPath(slug, learner), expires, signature) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	export, err := a.learning.Export(c.Request.Context(), learner, slug)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	pdfPath := a.files.ExportPath(slug, learner)
	defer a.files.Remove(pdfPath)
	if err := a.pdf.NotesPDF(export, pdfPath); err != nil {
		a.log.Error("notes export failed", "course", slug, "error", err)
		respondMessage(c, http.StatusInternalServerError, "unable to build notes export")
		return
	}

	if _, err := os.Stat(pdfPath); err != nil {
		respondMessage(c, http.StatusNotFound, "pdf not found")
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(pdfPath, slug+"-notes"+filepath.Ext(pdfPath))
}

func (a *API) handleListComments(c *gin.Context) {
	comments, err := a.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (a *API) handleSubmitComment(c *gin.Context) {
	var payload domain.CommentInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	comment, err := a.comments.Submit(c.Request.Context(), payload)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": a.comments.Accepted(), "comment": comment})
}

func (a *API) handleContact(c *gin.Context) {
	var payload domain.ContactSubmission
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := a.contact.Submit(c.Request.Context(), payload); err != nil {
		a.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Form submitted successfully"})
}

func (a *API) navigator(c *gin.Context) (*lesson.Navigator, bool) {
	nav, err := a.learning.Navigator(c.Request.Context(), learnerFrom(c), c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err)
		return nil, false
	}
	return nav, true
}

// openExisting positions a navigator on the route's lesson. Mutations on a
// lesson the course does not contain are rejected instead of falling back.
func (a *API) openExisting(c *gin.Context) (*lesson.Navigator, bool) {
	nav, ok := a.navigator(c)
	if !ok {
		return nil, false
	}
	if !nav.Open(c.Request.Context(), c.Param("lesson")) {
		respondMessage(c, http.StatusNotFound, "lesson not found")
		return nil, false
	}
	return nav, true
}

func (a *API) respondServiceError(c *gin.Context, err error) {
	status, msg := services.StatusOf(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", "route", c.FullPath(), "error", err)
	}
	if strings.TrimSpace(msg) == "" {
		msg = http.StatusText(status)
	}
	respondMessage(c, status, msg)
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
