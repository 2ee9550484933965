package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

const (
	ResourceSendNotification = "send_notification"

	ErrorKindNotificationUnavailable = "NotificationUnavailable"
)

var sendTimes = map[string]window{
	"EMAIL": {0.5, 1.5},
	"SMS":   {0.2, 0.8},
	"PUSH":  {0.1, 0.5},
}

// notificationFailureRate is the share of sends the simulated provider drops.
const notificationFailureRate = 0.05

// notificationType picks the channel: SMS for excellent runs, EMAIL for
// large runs and every failure, PUSH otherwise.
func notificationType(status string, score, records float64) string {
	if status != "SUCCESS" {
		return "EMAIL"
	}
	switch {
	case score > 0.9:
		return "SMS"
	case records > 500:
		return "EMAIL"
	}
	return "PUSH"
}

// SendNotification reports a processing result to the user.
func (e *Env) SendNotification(ctx context.Context, _ string, input any) (any, error) {
	log := logger(ctx)
	in, _ := input.(map[string]any)
	userID := stringOr(in, "userId", "unknown")
	status := stringOr(in, "status", "UNKNOWN")
	dataType := stringOr(in, "dataType", "general")
	records := numberOr(in, "recordsProcessed")
	score := numberOr(in, "processingScore")

	kind := notificationType(status, score, records)
	duration := e.uniform(sendTimes[kind].min, sendTimes[kind].max)
	log.InfoContext(ctx, "Sending notification", "user_id", userID, "type", kind, "status", status)
	if err := e.Sleep(ctx, seconds(duration)); err != nil {
		return nil, err
	}

	var message, priority string
	if status == "SUCCESS" {
		message = fmt.Sprintf("Data processing completed successfully! %d %s records processed with %.1f%% accuracy.",
			int64(records), dataType, score*100)
		priority = "normal"
		if score >= 0.9 {
			priority = "high"
		}
	} else {
		message = fmt.Sprintf("Data processing failed for %s. Please check logs for details.", dataType)
		priority = "high"
	}

	if e.Rand.Float64() <= notificationFailureRate {
		log.ErrorContext(ctx, "Failed to send notification", "user_id", userID, "type", kind)
		return nil, domain.NewTaskError(ErrorKindNotificationUnavailable, "Notification service unavailable for %s", kind)
	}

	now := e.Clock.Now().Unix()
	return map[string]any{
		"userId":           userID,
		"notificationType": kind,
		"status":           "SENT",
		"priority":         priority,
		"message":          message,
		"sentAt":           now,
		"sendDuration":     round(duration, 2),
		"deliveryId":       fmt.Sprintf("%s_%d_%d", strings.ToLower(kind), now, 1000+e.Rand.IntN(9000)),
		"originalData": map[string]any{
			"dataType":         dataType,
			"recordsProcessed": records,
			"processingScore":  score,
		},
		"metadata": map[string]any{
			"username": e.Username,
			"resource": ResourceSendNotification,
		},
	}, nil
}

func stringOr(in map[string]any, key, def string) string {
	if s, ok := in[key].(string); ok {
		return s
	}
	return def
}

func numberOr(in map[string]any, key string) float64 {
	switch n := in[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
