package doctor

import (
	"context"
)

// RemoteCheck pings the remote task service.
type RemoteCheck struct {
	url  string
	ping func(ctx context.Context) error
}

// NewRemoteCheck creates a remote check. ping reports whether the service
// at url is healthy.
func NewRemoteCheck(url string, ping func(ctx context.Context) error) *RemoteCheck {
	return &RemoteCheck{url: url, ping: ping}
}

func (c *RemoteCheck) Name() string {
	return "Remote Service"
}

func (c *RemoteCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if err := c.ping(ctx); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.url,
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{Label: c.url, Status: StatusPass, Detail: "healthy"})
	return result
}
