package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"slot-bot/lease"
	"slot-bot/model"
	"slot-bot/utils"
)

const (
	viewAndSend = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
	ownerDeny   = discordgo.PermissionMentionEveryone
)

// Discord implements lease.Gateway on a guild: a slot is a text channel in the
// slot category plus the slot role on its owner.
type Discord struct {
	session    *discordgo.Session
	guildID    string
	categoryID string
	roleID     string
}

var _ lease.Gateway = (*Discord)(nil)

func NewDiscord(s *discordgo.Session, cfg *model.Config) *Discord {
	return &Discord{
		session:    s,
		guildID:    cfg.GuildID,
		categoryID: cfg.CategoryID,
		roleID:     cfg.SlotRoleID,
	}
}

func (d *Discord) botID() string {
	if d.session.State != nil && d.session.State.User != nil {
		return d.session.State.User.ID
	}
	return ""
}

// CreateResource creates the owner's channel. Everyone can read it, only the
// owner and the bot can write, and only the bot can mention everyone.
func (d *Discord) CreateResource(ctx context.Context, ownerID string) (string, error) {
	user, err := d.session.User(ownerID, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(fmt.Errorf("failed to look up user %s: %w", ownerID, err))
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{ID: d.guildID, Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionViewChannel, Deny: discordgo.PermissionSendMessages},
		{ID: ownerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: viewAndSend, Deny: ownerDeny},
	}
	if bot := d.botID(); bot != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: bot, Type: discordgo.PermissionOverwriteTypeMember, Allow: viewAndSend | discordgo.PermissionMentionEveryone,
		})
	}

	channel, err := d.session.GuildChannelCreateComplex(d.guildID, discordgo.GuildChannelCreateData{
		Name:                 user.Username,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             d.categoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(fmt.Errorf("failed to create channel for %s: %w", ownerID, err))
	}
	return channel.ID, nil
}

// DeleteResource removes the channel. A channel that is already gone is not an error.
func (d *Discord) DeleteResource(ctx context.Context, resourceID string) error {
	_, err := d.session.ChannelDelete(resourceID, discordgo.WithContext(ctx))
	if err != nil && !isNotFound(err) {
		return classify(fmt.Errorf("failed to delete channel %s: %w", resourceID, err))
	}
	return nil
}

func (d *Discord) GrantRole(ctx context.Context, userID string) error {
	if err := d.session.GuildMemberRoleAdd(d.guildID, userID, d.roleID, discordgo.WithContext(ctx)); err != nil {
		return classify(fmt.Errorf("failed to add slot role to %s: %w", userID, err))
	}
	return nil
}

// RevokeRole takes the slot role away. A member who already left the guild is not an error.
func (d *Discord) RevokeRole(ctx context.Context, userID string) error {
	err := d.session.GuildMemberRoleRemove(d.guildID, userID, d.roleID, discordgo.WithContext(ctx))
	if err != nil && !isNotFound(err) {
		return classify(fmt.Errorf("failed to remove slot role from %s: %w", userID, err))
	}
	return nil
}

// RestrictWrites revokes send rights from every member overwrite on the channel except the bot.
func (d *Discord) RestrictWrites(ctx context.Context, resourceID string) error {
	return d.setMemberWrites(ctx, resourceID, false)
}

// RestoreWrites gives send rights back to the member overwrites on the channel.
func (d *Discord) RestoreWrites(ctx context.Context, resourceID string) error {
	return d.setMemberWrites(ctx, resourceID, true)
}

func (d *Discord) setMemberWrites(ctx context.Context, resourceID string, allow bool) error {
	channel, err := d.session.Channel(resourceID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(fmt.Errorf("failed to fetch channel %s: %w", resourceID, err))
	}

	var (
		allowBits int64 = discordgo.PermissionViewChannel
		denyBits  int64 = ownerDeny | discordgo.PermissionSendMessages
	)
	if allow {
		allowBits, denyBits = viewAndSend, ownerDeny
	}

	bot := d.botID()
	for _, o := range channel.PermissionOverwrites {
		if o.Type != discordgo.PermissionOverwriteTypeMember || o.ID == bot {
			continue
		}
		if err := d.session.ChannelPermissionSet(resourceID, o.ID, discordgo.PermissionOverwriteTypeMember, allowBits, denyBits, discordgo.WithContext(ctx)); err != nil {
			return classify(fmt.Errorf("failed to update permissions of %s in %s: %w", o.ID, resourceID, err))
		}
	}
	return nil
}

// Notify posts the notice in the slot channel. The expiry notice goes to the
// owner's DMs since the channel is removed right after.
func (d *Discord) Notify(ctx context.Context, resourceID string, notice model.Notice) error {
	msg := Render(notice)
	if notice.Kind == model.MessageExpired {
		if err := utils.SendPrivateMessage(d.session, notice.OwnerID, msg, discordgo.WithContext(ctx)); err != nil {
			return classify(err)
		}
		return nil
	}

	if _, err := d.session.ChannelMessageSendComplex(resourceID, msg, discordgo.WithContext(ctx)); err != nil {
		return classify(fmt.Errorf("failed to send %s notice to %s: %w", notice.Kind, resourceID, err))
	}
	return nil
}

// ResourceExists reports whether the channel is still in the guild.
func (d *Discord) ResourceExists(ctx context.Context, resourceID string) (bool, error) {
	if d.session.State != nil {
		if ch, err := d.session.State.Channel(resourceID); err == nil {
			return ch.GuildID == d.guildID, nil
		}
	}

	ch, err := d.session.Channel(resourceID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, classify(fmt.Errorf("failed to fetch channel %s: %w", resourceID, err))
	}
	return ch.GuildID == d.guildID, nil
}

func statusCode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

func isNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// classify marks a 403 from Discord as lease.ErrPermissionDenied.
func classify(err error) error {
	if statusCode(err) == http.StatusForbidden {
		return fmt.Errorf("%w: %w", lease.ErrPermissionDenied, err)
	}
	return err
}
