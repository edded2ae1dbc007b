package chi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/delivery/signature"
	"github.com/hookrelay/hookrelay/fault"
	chihandlers "github.com/hookrelay/hookrelay/internal/http/chi"
	"github.com/hookrelay/hookrelay/replay"
)

type fakeProcessor struct {
	err  error
	cmds []delivery.ProcessCommand
}

func (p *fakeProcessor) Process(ctx context.Context, cmd delivery.ProcessCommand) error {
	p.cmds = append(p.cmds, cmd)
	return p.err
}

type fakeQueue struct {
	enqueued []replay.Command
	err      error
}

func (q *fakeQueue) Enqueue(ctx context.Context, cmd replay.Command) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, cmd)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (replay.Command, bool, error) {
	return replay.Command{}, false, nil
}

func post(t *testing.T, handler http.Handler, headers map[string]string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func validHeaders(body []byte) map[string]string {
	return map[string]string{
		"X-GitHub-Delivery":   "d-1",
		"X-GitHub-Event":      "issues.opened",
		"X-Hub-Signature-256": signature.Sign(body, "s3cr3t"),
	}
}

func TestPostWebhook(t *testing.T) {
	body := []byte(`{"a":1,"installation":{"id":77}}`)

	t.Run("valid delivery is accepted with 202", func(t *testing.T) {
		proc := &fakeProcessor{}
		queue := &fakeQueue{}
		r := chihandlers.Handlers(proc, queue, "GitHub", nil)

		w := post(t, r, validHeaders(body), body)

		assert.Equal(t, http.StatusAccepted, w.Code)

		var resp struct {
			DeliveryID string `json:"delivery_id"`
			Status     string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "d-1", resp.DeliveryID)
		assert.Equal(t, "processed", resp.Status)

		require.Len(t, proc.cmds, 1)
		cmd := proc.cmds[0]
		assert.Equal(t, delivery.ID("d-1"), cmd.DeliveryID)
		assert.Equal(t, delivery.EventName("issues.opened"), cmd.EventName)
		assert.Equal(t, int64(77), cmd.InstallationID)
		assert.Equal(t, body, cmd.RawPayload)
		assert.Empty(t, queue.enqueued)
	})

	t.Run("missing headers are 400", func(t *testing.T) {
		for _, missing := range []string{"X-GitHub-Delivery", "X-GitHub-Event", "X-Hub-Signature-256"} {
			t.Run(missing, func(t *testing.T) {
				r := chihandlers.Handlers(&fakeProcessor{}, &fakeQueue{}, "GitHub", nil)

				headers := validHeaders(body)
				delete(headers, missing)

				w := post(t, r, headers, body)
				assert.Equal(t, http.StatusBadRequest, w.Code)
			})
		}
	})

	t.Run("invalid signature is 401", func(t *testing.T) {
		proc := &fakeProcessor{err: fault.New(fault.CodeSignatureInvalid)}
		r := chihandlers.Handlers(proc, &fakeQueue{}, "GitHub", nil)

		w := post(t, r, validHeaders(body), body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("retryable storage failure is queued and acknowledged", func(t *testing.T) {
		proc := &fakeProcessor{err: fault.Wrap(fault.CodeStorageWriteFailed, errors.New("db down"))}
		queue := &fakeQueue{}
		r := chihandlers.Handlers(proc, queue, "GitHub", nil)

		w := post(t, r, validHeaders(body), body)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), "queued_for_retry")

		require.Len(t, queue.enqueued, 1)
		assert.Equal(t, 0, queue.enqueued[0].Attempt)
		assert.Equal(t, delivery.ID("d-1"), queue.enqueued[0].Process.DeliveryID)
	})

	t.Run("storage failure with a failing queue is 500", func(t *testing.T) {
		proc := &fakeProcessor{err: fault.Wrap(fault.CodeStorageWriteFailed, errors.New("db down"))}
		queue := &fakeQueue{err: errors.New("queue down")}
		r := chihandlers.Handlers(proc, queue, "GitHub", nil)

		w := post(t, r, validHeaders(body), body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("configuration failure is 500", func(t *testing.T) {
		proc := &fakeProcessor{err: fault.New(fault.CodeSecretEmpty)}
		r := chihandlers.Handlers(proc, &fakeQueue{}, "GitHub", nil)

		w := post(t, r, validHeaders(body), body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("provider selects the header family", func(t *testing.T) {
		proc := &fakeProcessor{}
		r := chihandlers.Handlers(proc, &fakeQueue{}, "Gitea", nil)

		headers := map[string]string{
			"X-Gitea-Delivery":    "d-2",
			"X-Gitea-Event":       "push",
			"X-Hub-Signature-256": signature.Sign(body, "s3cr3t"),
		}
		w := post(t, r, headers, body)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("payload without installation scope yields zero", func(t *testing.T) {
		proc := &fakeProcessor{}
		r := chihandlers.Handlers(proc, &fakeQueue{}, "GitHub", nil)

		plain := []byte(`{"a":1}`)
		headers := validHeaders(plain)
		w := post(t, r, headers, plain)

		assert.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, proc.cmds, 1)
		assert.Zero(t, proc.cmds[0].InstallationID)
	})
}

func TestHealth(t *testing.T) {
	r := chihandlers.Handlers(&fakeProcessor{}, &fakeQueue{}, "GitHub", nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
