package testutil

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"taskdesk/internal/service"
)

// RecordedRequest is one request received by a FakeAPI.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// FakeAPI serves the task service REST contract over HTTP, backed by a
// FakeGateway. Assignees are emitted under "user" the way the real
// service does.
type FakeAPI struct {
	*httptest.Server
	Gateway *FakeGateway

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewFakeAPI starts a FakeAPI for gw. The server is closed on cleanup.
func NewFakeAPI(t testing.TB, gw *FakeGateway) *FakeAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &FakeAPI{Gateway: gw}
	router := gin.New()
	router.Use(api.record)

	g := router.Group("/api")
	g.GET("/tasks", api.listTasks)
	g.POST("/tasks", api.createTask)
	g.GET("/tasks/:id", api.getTask)
	g.PUT("/tasks/:id", api.updateTask)
	g.DELETE("/tasks/:id", api.deleteTask)
	g.PATCH("/tasks/:id/status", api.updateStatus)
	g.PATCH("/tasks/:id/assign", api.assignUser)
	g.GET("/users", api.listUsers)

	api.Server = httptest.NewServer(router)
	t.Cleanup(api.Server.Close)
	return api
}

// BaseURL returns the API root to configure a client with.
func (a *FakeAPI) BaseURL() string {
	return a.URL + "/api"
}

// Requests returns every request received so far.
func (a *FakeAPI) Requests() []RecordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]RecordedRequest(nil), a.requests...)
}

// LastRequest returns the most recent request, or the zero value.
func (a *FakeAPI) LastRequest() RecordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.requests) == 0 {
		return RecordedRequest{}
	}
	return a.requests[len(a.requests)-1]
}

func (a *FakeAPI) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	a.mu.Lock()
	a.requests = append(a.requests, RecordedRequest{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.RawQuery,
		Header: c.Request.Header.Clone(),
		Body:   string(body),
	})
	a.mu.Unlock()
	c.Next()
}

type wireTask struct {
	service.Task
	Assignee *service.Assignee `json:"assignee,omitempty"`
	User     *service.Assignee `json:"user,omitempty"`
}

func toWire(t service.Task) wireTask {
	return wireTask{Task: t, User: t.Assignee}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, err error) {
	var apiErr *service.APIError
	if !errors.As(err, &apiErr) || !apiErr.HasStatus() {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	body := gin.H{"success": false, "message": apiErr.Message}
	if len(apiErr.Errors) > 0 {
		body["errors"] = apiErr.Errors
	}
	c.JSON(apiErr.StatusCode, body)
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
}

func (a *FakeAPI) listTasks(c *gin.Context) {
	var filters service.TaskFilters
	if s := c.Query("status"); s != "" {
		filters.Status = service.TaskStatus(s)
	}
	if p := c.Query("priority"); p != "" {
		filters.Priority = service.TaskPriority(p)
	}
	filters.Search = c.Query("search")

	tasks, err := a.Gateway.ListTasks(c.Request.Context(), filters)
	if err != nil {
		fail(c, err)
		return
	}
	data := make([]wireTask, len(tasks))
	for i, t := range tasks {
		data[i] = toWire(t)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"pagination": service.Pagination{
			Total: len(tasks),
			Page:  1,
			Limit: 50,
			Pages: 1,
		},
	})
}

func (a *FakeAPI) getTask(c *gin.Context) {
	task, err := a.Gateway.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, toWire(task))
}

func (a *FakeAPI) createTask(c *gin.Context) {
	var input service.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badBody(c)
		return
	}
	task, err := a.Gateway.CreateTask(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, toWire(task))
}

func (a *FakeAPI) updateTask(c *gin.Context) {
	var input service.UpdateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badBody(c)
		return
	}
	task, err := a.Gateway.UpdateTask(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, toWire(task))
}

func (a *FakeAPI) deleteTask(c *gin.Context) {
	if err := a.Gateway.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *FakeAPI) updateStatus(c *gin.Context) {
	var body struct {
		Status service.TaskStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c)
		return
	}
	task, err := a.Gateway.UpdateTaskStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, toWire(task))
}

func (a *FakeAPI) assignUser(c *gin.Context) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c)
		return
	}
	task, err := a.Gateway.AssignUser(c.Request.Context(), c.Param("id"), body.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, toWire(task))
}

func (a *FakeAPI) listUsers(c *gin.Context) {
	users, err := a.Gateway.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}
