package chi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/fault"
	"github.com/hookrelay/hookrelay/replay"
)

// signatureHeader carries the sha256= HMAC of the raw body.
const signatureHeader = "X-Hub-Signature-256"

type webhookResponse struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

/* postWebhook handles POST /webhooks.
 * 400: missing/malformed delivery id, event name, or signature header.
 * 401: signature present but invalid.
 * 202: delivery accepted; handler outcomes never change the response,
 *      and a retryable storage failure parks the command on the replay
 *      queue before acknowledging.
 */
func postWebhook(processor delivery.UseCase, queue replay.Queue, provider string) http.Handler {
	deliveryHeader := fmt.Sprintf("X-%s-Delivery", provider)
	eventHeader := fmt.Sprintf("X-%s-Event", provider)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveryID := r.Header.Get(deliveryHeader)
		if deliveryID == "" {
			http.Error(w, fmt.Sprintf("%s header is required", deliveryHeader), http.StatusBadRequest)
			return
		}
		eventName := r.Header.Get(eventHeader)
		if eventName == "" {
			http.Error(w, fmt.Sprintf("%s header is required", eventHeader), http.StatusBadRequest)
			return
		}
		sig := r.Header.Get(signatureHeader)
		if sig == "" {
			http.Error(w, fmt.Sprintf("%s header is required", signatureHeader), http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		cmd := delivery.NewProcessCommand(
			delivery.ID(deliveryID),
			delivery.EventName(eventName),
			installationID(body),
			sig,
			body,
		)

		status := "processed"
		if err := processor.Process(r.Context(), cmd); err != nil {
			switch fault.CodeOf(err) {
			case fault.CodeSignatureInvalid:
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			case fault.CodeStorageReadFailed, fault.CodeStorageWriteFailed:
				// Retryable: park it on the replay queue, then acknowledge.
				if qerr := queue.Enqueue(r.Context(), replay.NewCommand(cmd)); qerr != nil {
					http.Error(w, "failed to queue delivery for retry", http.StatusInternalServerError)
					return
				}
				status = "queued_for_retry"
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(webhookResponse{
			DeliveryID: deliveryID,
			Status:     status,
		})
	})
}

// installationID extracts the optional installation scope from the
// payload. Best-effort: a payload without one yields zero.
func installationID(body []byte) int64 {
	var probe struct {
		Installation struct {
			ID int64 `json:"id"`
		} `json:"installation"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return 0
	}
	return probe.Installation.ID
}
