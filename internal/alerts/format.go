package alerts

import (
	"fmt"

	"github.com/ozxc44/queue-monitor-dev/internal/utils"
)

func formatTitle(c Condition) string {
	switch c.(type) {
	case DepthAlert:
		return "Queue Depth High"
	case FailedAlert:
		return "Failed Jobs"
	case WorkersDownAlert:
		return "No Active Workers"
	}
	panic(fmt.Sprintf("alerts: unhandled condition %T", c))
}

func formatMessage(queueName string, c Condition) string {
	switch a := c.(type) {
	case DepthAlert:
		return fmt.Sprintf("Queue '%s' depth: %d (threshold: %d)", queueName, a.Depth, a.Threshold)
	case FailedAlert:
		return fmt.Sprintf("Queue '%s' has %d failed jobs", queueName, a.Failed)
	case WorkersDownAlert:
		return fmt.Sprintf("Queue '%s' has no active workers", queueName)
	}
	panic(fmt.Sprintf("alerts: unhandled condition %T", c))
}

func formatDetails(c Condition) []AlertDetail {
	switch a := c.(type) {
	case DepthAlert:
		return []AlertDetail{
			{Label: "Depth", Value: utils.FormatCount(a.Depth)},
			{Label: "Threshold", Value: utils.FormatCount(a.Threshold)},
		}
	case FailedAlert:
		return []AlertDetail{{Label: "Failed", Value: utils.FormatCount(a.Failed)}}
	case WorkersDownAlert:
		return []AlertDetail{{Label: "Workers", Value: utils.FormatCount(a.Workers)}}
	}
	panic(fmt.Sprintf("alerts: unhandled condition %T", c))
}

func severityEmoji(s Severity) string {
	switch s {
	case SeverityCritical:
		return "🚨"
	case SeverityWarning:
		return "⚠️"
	default:
		return "💚"
	}
}

func severityColor(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0xFF0000
	case SeverityWarning:
		return 0xFFA500
	default:
		return 0x00FF00
	}
}
