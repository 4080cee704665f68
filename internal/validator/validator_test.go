package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
	Setup()
}

func bindBody(body string) map[string]string {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req model.SubmitRequest
	return Bind(c, &req)
}

func TestBind_SubmitRequest(t *testing.T) {
	assert.Nil(t, bindBody(`{"responses":[{"instance_key":"q1_0_2","selected":["1"],"time_spent":12}]}`))
	assert.Nil(t, bindBody(`{"responses":[{"question_ref":"q1","selected":["1"]}]}`))
	assert.Nil(t, bindBody(`{"responses":[]}`))
}

func TestBind_SubmitEntryIdentityIsNotValidated(t *testing.T) {
	assert.Nil(t, bindBody(`{"responses":[{"instance_key":"q1-0-2","selected":["1"]},{"selected":["1"],"time_spent":-4}]}`))
}

func TestBind_OversizedSelection(t *testing.T) {
	fields := bindBody(`{"responses":[{"instance_key":"q1_0_0","selected":["` + strings.Repeat("x", 65) + `"]}]}`)
	assert.Contains(t, fields, "responses[0].selected[0]")
}

func TestBind_MalformedJSON(t *testing.T) {
	fields := bindBody(`{"responses":`)
	assert.Contains(t, fields, "detail")
}

func TestStruct_Autosave(t *testing.T) {
	assert.Nil(t, Struct(&model.AutosaveResponse{InstanceKey: "q1_0_0"}))

	fields := Struct(&model.AutosaveResponse{InstanceKey: "q1-0-2"})
	if assert.Contains(t, fields, "instance_key") {
		assert.Contains(t, fields["instance_key"], "<question>_<section>_<position>")
	}
	assert.Contains(t, Struct(&model.AutosaveResponse{}), "instance_key")
	assert.Contains(t, Struct(&model.AutosaveResponse{InstanceKey: "q1_0_0", TimeSpent: -1}), "time_spent")
}
