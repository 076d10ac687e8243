package method_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints/method"
	"github.com/zalando/waypoint/endpointtest"
)

func TestMethod(t *testing.T) {
	for _, tt := range []struct {
		endpoint endpoint.Endpoint
		method   string
		status   int
	}{
		{method.Get(), "GET", http.StatusOK},
		{method.Get(), "POST", http.StatusMethodNotAllowed},
		{method.Head(), "HEAD", http.StatusOK},
		{method.Post(), "POST", http.StatusOK},
		{method.Put(), "PUT", http.StatusOK},
		{method.Patch(), "PATCH", http.StatusOK},
		{method.Delete(), "DELETE", http.StatusOK},
		{method.Options(), "OPTIONS", http.StatusOK},
		{method.Is("put", "Patch"), "PATCH", http.StatusOK},
		{method.Is("put", "Patch"), "DELETE", http.StatusMethodNotAllowed},
		{method.Any(), "PROPFIND", http.StatusOK},
	} {
		res := endpointtest.NewRequest(tt.method, "/").Apply(tt.endpoint)
		assert.Equal(t, tt.status, res.Status(), tt.method)
	}
}

func TestMethodRejectionReason(t *testing.T) {
	res := endpointtest.NewRequest("POST", "/").Apply(method.Get())
	if assert.NotNil(t, res.Rejection) {
		assert.Equal(t, "method POST not allowed", res.Rejection.Reason)
	}
}
