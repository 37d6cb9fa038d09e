package notification

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/snaplink/snaplink/pkg/config"
)

const (
	maxEmbedsPerMessage = 10

	// hardcoded limit of fields to avoid hammering the api
	maxTotalFields = 250
)

type DiscordMessage struct {
	Content interface{}    `json:"content"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

type DiscordEmbed struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Color       int                  `json:"color"`
	Fields      []DiscordEmbedsField `json:"fields,omitempty"`
	Footer      DiscordEmbedsFooter  `json:"footer,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
}

type DiscordEmbedsFooter struct {
	Text string `json:"text"`
}

type DiscordEmbedsField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedColors int

const (
	LIGHT_BLUE EmbedColors = 0x58b9ff
	RED        EmbedColors = 0xed4245
	GREEN      EmbedColors = 0x57f287
)

type discordSender struct {
	log    *logrus.Entry
	config config.NotificationsConfig

	httpClient *retryablehttp.Client
}

func (d *discordSender) Name() string {
	return "discord"
}

func NewDiscordSender(log *logrus.Entry, cfg config.NotificationsConfig) Sender {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.HTTPClient.Timeout = time.Second * 30
	httpClient.Logger = nil

	return &discordSender{
		log:        log.WithField("sender", "discord"),
		config:     cfg,
		httpClient: httpClient,
	}
}

func (d *discordSender) CanSend() bool {
	return d.config.Service.Discord != ""
}

func (d *discordSender) Send(title string, description string, runTime time.Duration, fields []Field, dryRun bool) error {
	if dryRun {
		title = title + " (Dry Run)"
	}

	totalFields := len(fields)

	// if the config setting "skip_empty_run" is set to true, and there are
	// no fields, skip sending the message entirely.
	if totalFields == 0 && d.config.SkipEmptyRun {
		return nil
	}

	rt := runTime.Truncate(time.Millisecond).String()

	var allEmbeds []DiscordEmbed
	timestamp := time.Now()

	// only send a summary embed if no fields are present, there are more
	// fields than allowed, or the config setting "detailed" is false
	if totalFields == 0 || totalFields > maxTotalFields || !d.config.Detailed {
		allEmbeds = append(allEmbeds, DiscordEmbed{
			Title:       title,
			Description: description,
			Color:       int(LIGHT_BLUE),
			Footer:      DiscordEmbedsFooter{Text: fmt.Sprintf("Run took %s", rt)},
			Timestamp:   timestamp,
		})
	} else {
		for i, field := range fields {
			allEmbeds = append(allEmbeds, DiscordEmbed{
				Title:       title,
				Description: fmt.Sprintf("**%s**", field.Name),
				Color:       int(LIGHT_BLUE),
				Fields:      parseFieldValueToInlineFields(field.Value),
				Footer:      DiscordEmbedsFooter{Text: fmt.Sprintf("%d/%d | Run took %s", i+1, totalFields, rt)},
				Timestamp:   timestamp,
			})
		}

		allEmbeds = append(allEmbeds, DiscordEmbed{
			Title:       fmt.Sprintf("%s - Summary", title),
			Description: description,
			Color:       int(GREEN),
			Footer:      DiscordEmbedsFooter{Text: fmt.Sprintf("Run took %s", rt)},
			Timestamp:   timestamp,
		})
	}

	for start := 0; start < len(allEmbeds); start += maxEmbedsPerMessage {
		end := start + maxEmbedsPerMessage
		if end > len(allEmbeds) {
			end = len(allEmbeds)
		}

		msg := DiscordMessage{
			Content: nil,
			Embeds:  allEmbeds[start:end],
		}

		jsonData, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "marshal discord message")
		}

		if err := d.sendRequest(jsonData); err != nil {
			return errors.Wrap(err, "send discord message")
		}
	}

	d.log.Debugf("Sent notification with %d field(s)", totalFields)
	return nil
}

func (d *discordSender) sendRequest(jsonData []byte) error {
	req, err := retryablehttp.NewRequest(http.MethodPost, d.config.Service.Discord, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "could not create request")
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := d.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "client request error")
	}
	defer res.Body.Close()

	d.log.Tracef("Discord response status: %d", res.StatusCode)

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		body, readErr := io.ReadAll(bufio.NewReader(res.Body))
		if readErr != nil {
			return errors.Wrap(readErr, "could not read body")
		}

		return errors.Errorf("unexpected status: %v body: %v", res.StatusCode, string(body))
	}

	return nil
}

// BuildField constructs a Field based on the provided action and build options.
func (d *discordSender) BuildField(action Action, opt BuildOptions) Field {
	switch action {
	case ActionLink:
		return d.buildLinkField(opt)
	case ActionSkip:
		return d.buildSkipField(opt)
	}

	return Field{}
}

func (d *discordSender) buildLinkField(opt BuildOptions) Field {
	var inlineFields []DiscordEmbedsField

	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Linked To",
		Value:  opt.Target,
		Inline: true,
	})

	if opt.Paths > 1 {
		inlineFields = append(inlineFields, DiscordEmbedsField{
			Name:   "Paths",
			Value:  strconv.Itoa(opt.Paths),
			Inline: true,
		})
	}

	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Reclaimed",
		Value:  humanize.IBytes(opt.ReclaimedBytes),
		Inline: true,
	})

	jsonData, _ := json.Marshal(inlineFields)

	return Field{
		Name:  fmt.Sprintf("%s (%s)", opt.Source, humanize.IBytes(opt.ReclaimedBytes)),
		Value: string(jsonData),
	}
}

func (d *discordSender) buildSkipField(opt BuildOptions) Field {
	var inlineFields []DiscordEmbedsField

	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Link Target",
		Value:  opt.Target,
		Inline: true,
	})

	jsonData, _ := json.Marshal(inlineFields)

	return Field{
		Name:  fmt.Sprintf("%s (skipped)", opt.Source),
		Value: string(jsonData),
	}
}

// parseFieldValueToInlineFields decodes the JSON-encoded inline fields stored
// in a Field value.
func parseFieldValueToInlineFields(value string) []DiscordEmbedsField {
	var inlineFields []DiscordEmbedsField
	if err := json.Unmarshal([]byte(value), &inlineFields); err != nil {
		return []DiscordEmbedsField{{Name: "Details", Value: value}}
	}

	return inlineFields
}
