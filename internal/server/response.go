package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/desertthunder/recordkit/internal/models"
)

// Response is the JSON envelope for every API answer.
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse wraps data with code 0.
func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Code: 0, Message: "success", Data: data}
}

// NewErrorResponse builds an error envelope without data.
func NewErrorResponse(code int, message string) Response[any] {
	return Response[any]{Code: code, Message: message}
}

// NoteList is the payload of GET /notes.
type NoteList struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total"` // Total counts every match, ignoring limit and offset
}

// CountResult is the payload of GET /notes/count.
type CountResult struct {
	Count int `json:"count"`
}

// DeleteResult is the payload of DELETE /notes.
type DeleteResult struct {
	Deleted int `json:"deleted"`
}

// HealthResult is the payload of GET /health.
type HealthResult struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// NoteInput is the request body for creating or replacing a note.
type NoteInput struct {
	Title  string   `json:"title" binding:"required"`
	Body   string   `json:"body"`
	Tags   []string `json:"tags"`
	Pinned bool     `json:"pinned"`
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(status, message))
}

func badRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, err.Error())
}
