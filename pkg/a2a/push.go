package a2a

// PushNotificationAuthInfo describes how the server should authenticate to
// the webhook URL when delivering a notification.
type PushNotificationAuthInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// PushNotificationConfig is a single webhook subscription for a task.
type PushNotificationConfig struct {
	ID             string                    `json:"id,omitempty"`
	URL            string                    `json:"url"`
	Token          string                    `json:"token,omitempty"`
	Authentication *PushNotificationAuthInfo `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig associates a push config with a task id.
type TaskPushNotificationConfig struct {
	TaskID string                 `json:"taskId"`
	Config PushNotificationConfig `json:"pushNotificationConfig"`
}
