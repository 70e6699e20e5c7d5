package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// Directory reads member profiles from the workspace.
type Directory struct {
	client *slack.Client
}

var _ ports.ActorDirectoryLookup = (*Directory)(nil)

func NewDirectory(client *slack.Client) ports.ActorDirectoryLookup {
	return &Directory{client: client}
}

func (d *Directory) LookupActor(ctx context.Context, externalID string) (*domain.ActorInfo, error) {
	user, err := d.client.GetUserInfoContext(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("users.info %s: %w", externalID, err)
	}
	return &domain.ActorInfo{
		ExternalID:  user.ID,
		Username:    user.Name,
		RealName:    firstNonEmpty(user.Profile.RealName, user.RealName),
		DisplayName: user.Profile.DisplayName,
		Email:       user.Profile.Email,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
