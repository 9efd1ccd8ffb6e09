package backend

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/xray-triage/internal/backendstub"
	"github.com/Krimson/xray-triage/pkg/models"
)

func newTestClient(t *testing.T) (*Client, *backendstub.Stub) {
	t.Helper()
	stub := backendstub.New(nil)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client, stub
}

func TestFetchDiseaseDetails_Idempotent(t *testing.T) {
	client, stub := newTestClient(t)
	ctx := context.Background()

	first, err := client.FetchDiseaseDetails(ctx, "Pneumonia", "en")
	require.NoError(t, err)
	second, err := client.FetchDiseaseDetails(ctx, "Pneumonia", "en")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Pneumonia", first.Disease)
	assert.Equal(t, 2, stub.Calls(backendstub.RouteDiseaseDetails))
}

func TestFetchDiseaseDetails_DefaultLanguageAndEscaping(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"disease":"Pleural Thickening","details":"text"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	detail, err := client.FetchDiseaseDetails(context.Background(), "Pleural Thickening", "")
	require.NoError(t, err)

	assert.Equal(t, "/disease-details/Pleural%20Thickening", gotPath)
	assert.Equal(t, "language=en", gotQuery)
	assert.Equal(t, "en", detail.Language)
}

func TestFetchDiseaseDetails_WrapsFailure(t *testing.T) {
	client, stub := newTestClient(t)
	stub.FailRoute(backendstub.RouteDiseaseDetails, http.StatusInternalServerError)

	_, err := client.FetchDiseaseDetails(context.Background(), "Effusion", "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiseaseDetailsUnavailable)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}

func TestDo_ServerErrorPassesPayloadThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Username already registered","code":17}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	err = client.Do(context.Background(), http.MethodPost, "/register", map[string]string{"username": "a"}, nil)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Username already registered", apiErr.Message)
	assert.Equal(t, map[string]any{"detail": "Username already registered", "code": float64(17)}, apiErr.Payload)
}

func TestDo_NoResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewClient(url)
	require.NoError(t, err)

	err = client.Do(context.Background(), http.MethodGet, "/diseases/", nil, nil)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindNoResponse, apiErr.Kind)
	assert.Contains(t, apiErr.Error(), "no response from server")
}

func TestDo_RawErrorOnBadBody(t *testing.T) {
	client, stub := newTestClient(t)

	err := client.Do(context.Background(), http.MethodPost, "/subscribe", map[string]any{"bad": make(chan int)}, nil)
	require.Error(t, err)

	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, stub.TotalCalls())
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("::not a url")
	assert.Error(t, err)
}

func TestPredictImage_ValidatesFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"image_url":"x"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.PredictImage(context.Background(), "x")

	var predErr *PredictionError
	require.True(t, errors.As(err, &predErr))
	assert.Equal(t, "invalid prediction response format", predErr.Message)
	assert.Equal(t, http.StatusInternalServerError, predErr.Status)
}

func TestPredictImage_NormalizesServerError(t *testing.T) {
	client, stub := newTestClient(t)
	stub.FailRoute(backendstub.RoutePredict, http.StatusBadGateway)

	_, err := client.PredictImage(context.Background(), "https://example.com/x1.png")

	var predErr *PredictionError
	require.True(t, errors.As(err, &predErr))
	assert.Equal(t, http.StatusBadGateway, predErr.Status)
	assert.NotNil(t, predErr.Data)
}

func TestSaveResultAndHistory(t *testing.T) {
	client, stub := newTestClient(t)
	ctx := context.Background()

	rec := &models.SaveResultRecord{
		Username: "alice",
		ImageURL: "https://example.com/x1.png",
		Disease:  "Pneumonia",
		Details:  "text",
	}
	require.NoError(t, client.SaveResult(ctx, "token", rec))
	require.Len(t, stub.Saved(), 1)

	items, err := client.History(ctx, "alice", "token")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pneumonia", items[0].Disease)

	_, err = client.History(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestSaveResult_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.SaveResult(context.Background(), "", &models.SaveResultRecord{Username: "alice"})
	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestLoginAndUpload(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	token, err := client.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "alice", token.Username)

	upload, err := client.UploadImage(ctx, "chest.PNG", bytes.NewReader([]byte("fake image")))
	require.NoError(t, err)
	assert.Equal(t, "png", upload.Format)
	assert.True(t, strings.HasSuffix(client.ImageURL(upload.PublicID), upload.PublicID))
}

func TestChat_LocalBotRequiresDisease(t *testing.T) {
	client, stub := newTestClient(t)
	chat := NewChat(client)

	_, err := chat.Ask(context.Background(), models.MedicalQuery{Question: "Is it serious?"})
	assert.ErrorIs(t, err, ErrDiseaseRequired)
	assert.Equal(t, 0, stub.TotalCalls())

	resp, err := chat.Ask(context.Background(), models.MedicalQuery{Question: "Is it serious?", Disease: "Edema"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "Edema")

	chat.SetBot(BotGemini)
	resp, err = chat.Ask(context.Background(), models.MedicalQuery{Question: "Is it serious?"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Disclaimer)
}

func TestDiseaseCRUD(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	created, err := client.CreateDisease(ctx, &models.Disease{Name: "Hernia"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	created.Description = "updated"
	updated, err := client.UpdateDisease(ctx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Description)

	all, err := client.ListDiseases(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, client.DeleteDisease(ctx, created.ID))
	_, err = client.GetDisease(ctx, created.ID)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}
