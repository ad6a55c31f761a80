package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"safetour/internal/domain"
)

type triggerWordsRequest struct {
	Words []string `json:"words" binding:"required"`
}

type silentModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type transcriptRequest struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

type contactRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
	Primary      bool   `json:"primary"`
}

func (r contactRequest) toDomain(id uint) domain.Contact {
	return domain.Contact{ID: id, Name: r.Name, Phone: r.Phone, Relationship: r.Relationship, Primary: r.Primary}
}

func (h *handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Session.Status())
}

// sessionAction runs one controller operation and answers with the new status.
func (h *handler) sessionAction(action func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := action(c.Request.Context()); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, h.deps.Session.Status())
	}
}

func (h *handler) getTriggerWords(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"words": h.deps.Session.Status().TriggerWords})
}

func (h *handler) putTriggerWords(c *gin.Context) {
	var req triggerWordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := h.deps.Session.SetTriggerWords(c.Request.Context(), req.Words); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"words": h.deps.Session.Status().TriggerWords})
}

func (h *handler) putSilentMode(c *gin.Context) {
	var req silentModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := h.deps.Session.SetSilentMode(c.Request.Context(), *req.Enabled); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Session.Status())
}

func (h *handler) pushTranscript(c *gin.Context) {
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := h.deps.Transcripts.Push(req.Text, req.Final); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handler) listContacts(c *gin.Context) {
	contacts, err := h.deps.Contacts.ListContacts(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *handler) getContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	contact, err := h.deps.Contacts.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *handler) createContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	contact, err := h.deps.Contacts.Create(c.Request.Context(), req.toDomain(0))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *handler) updateContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	contact, err := h.deps.Contacts.Update(c.Request.Context(), req.toDomain(id))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *handler) deleteContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	if err := h.deps.Contacts.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
			return
		}
		limit = parsed
	}
	records, err := h.deps.History.Recent(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func contactID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		abortWithError(c, fmt.Errorf("%w: invalid contact id %q", errBadRequest, c.Param("id")))
		return 0, false
	}
	return uint(id), true
}
