package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"eventide/internal/workflow"
)

const (
	adminServiceURL = "http://localhost:8085"
)

func TestAdminServiceHealth(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/health", adminServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.NotNil(t, health["status"])
}

func TestWorkflowCRUD(t *testing.T) {
	createReq := workflow.CreateWorkflowRequest{
		Name:      "order_paid_notify",
		EventType: "order.paid",
		Source:    "orders",
		Rules: []workflow.CreateRule{
			{
				Priority:     10,
				Condition:    "payload.amount > 100",
				ActionType:   workflow.ActionWebhook,
				ActionConfig: map[string]interface{}{"url": "https://hooks.example.com/order-paid"},
			},
		},
	}

	wf := createWorkflow(t, createReq)
	defer deleteWorkflow(t, wf.ID)

	fetched := getWorkflow(t, wf.ID)
	assert.Equal(t, createReq.Name, fetched.Name)
	assert.Equal(t, createReq.EventType, fetched.EventType)
	assert.Equal(t, workflow.StatusActive, fetched.Status)
	require.Len(t, fetched.Rules, 1)
	assert.Equal(t, workflow.ActionWebhook, fetched.Rules[0].ActionType)

	workflows := listWorkflows(t)
	found := false
	for _, w := range workflows {
		if w.ID == wf.ID {
			found = true
		}
	}
	assert.True(t, found, "created workflow should be in the list")

	inactive := workflow.StatusInactive
	updateReq := workflow.UpdateWorkflowRequest{Status: &inactive}
	updated := updateWorkflow(t, wf.ID, updateReq)
	assert.Equal(t, workflow.StatusInactive, updated.Status)
}

func TestWorkflowValidationErrors(t *testing.T) {
	invalidReq := workflow.CreateWorkflowRequest{Name: ""}
	resp := createWorkflowWithError(t, invalidReq)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWorkflowDuplicateEventTypeSourceConflicts(t *testing.T) {
	createReq := workflow.CreateWorkflowRequest{
		Name:      "dup_test",
		EventType: "dup.event",
		Source:    "dup_source",
	}
	wf := createWorkflow(t, createReq)
	defer deleteWorkflow(t, wf.ID)

	resp := createWorkflowWithError(t, createReq)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func createWorkflow(t *testing.T, req workflow.CreateWorkflowRequest) workflow.Workflow {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(fmt.Sprintf("%s/api/v1/workflows", adminServiceURL), "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var wf workflow.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wf))
	return wf
}

func createWorkflowWithError(t *testing.T, req workflow.CreateWorkflowRequest) *http.Response {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(fmt.Sprintf("%s/api/v1/workflows", adminServiceURL), "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	return resp
}

func getWorkflow(t *testing.T, id string) workflow.Workflow {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workflows/%s", adminServiceURL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wf workflow.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wf))
	return wf
}

func listWorkflows(t *testing.T) []workflow.Workflow {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workflows", adminServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workflows []workflow.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflows))
	return workflows
}

func updateWorkflow(t *testing.T, id string, req workflow.UpdateWorkflowRequest) workflow.Workflow {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/v1/workflows/%s", adminServiceURL, id), bytes.NewBuffer(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wf workflow.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wf))
	return wf
}

func deleteWorkflow(t *testing.T, id string) {
	t.Helper()

	httpReq, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/workflows/%s", adminServiceURL, id), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
