package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/repos"
	"github.com/civicweave/civicweave-backend/internal/services"
)

type StoriesHandler struct {
	stories services.StoryGraph
	scopes  repos.ScopeRepo
}

func NewStoriesHandler(stories services.StoryGraph, scopes repos.ScopeRepo) *StoriesHandler {
	return &StoriesHandler{stories: stories, scopes: scopes}
}

// GET /api/scopes/:key/stories
func (h *StoriesHandler) List(c *gin.Context) {
	scope, ok := resolveScope(c, h.scopes)
	if !ok {
		return
	}

	stories, err := h.stories.ListStories(c.Request.Context(), scope.ID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "stories_list_failed", err)
		return
	}

	RespondOK(c, gin.H{"stories": stories})
}

// GET /api/stories/:id
func (h *StoriesHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_story_id", err)
		return
	}

	story, err := h.stories.GetStory(c.Request.Context(), id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "story_lookup_failed", err)
		return
	}
	if story == nil {
		RespondError(c, http.StatusNotFound, "story_not_found", errors.New("unknown story"))
		return
	}

	signalIDs, err := h.stories.ContainedSignalIDs(c.Request.Context(), id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "story_signals_failed", err)
		return
	}

	RespondOK(c, gin.H{"story": story, "signal_ids": signalIDs})
}
