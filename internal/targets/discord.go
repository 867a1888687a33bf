// Package targets holds outbound notification targets fed by completed
// analyses.
package targets

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"credcheck/internal/types"
)

// DiscordAlerter posts a channel message whenever an item is classified
// fake. Delivery failures are logged and dropped; alerting is best-effort.
type DiscordAlerter struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

func NewDiscordAlerter(botToken, channelID string, logger *slog.Logger) (*DiscordAlerter, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordAlerter{session: session, channelID: channelID, logger: logger}, nil
}

// Notify sends one alert for a fake verdict. Real verdicts are ignored.
func (d *DiscordAlerter) Notify(headline, source string, result types.AggregationResult) {
	if !result.IsFake {
		return
	}

	content := fmt.Sprintf("%s **Possible fake news detected**\n%s\nSource: %s (votes %d fake / %d real)",
		types.LabelFake, headline, source, result.VotesForFake, result.VotesForReal)

	if _, err := d.session.ChannelMessageSend(d.channelID, content); err != nil {
		d.logger.Error("failed to send discord alert", "channel", d.channelID, "error", err)
		return
	}
	d.logger.Debug("sent discord alert", "channel", d.channelID)
}

func (d *DiscordAlerter) Close() error {
	return d.session.Close()
}
