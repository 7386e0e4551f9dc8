// Package vision is the client adapter for the external description
// generator. Calls are rate limited and guarded by the external-services
// circuit breaker.
package vision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
	"github.com/seojun-park/sheetwise/internal/resilience"
)

// DescribeRequest asks for a description of one visual element.
type DescribeRequest struct {
	ElementID string
	Class     constants.ElementClass
	ImageURL  string // data: or https: URL of the cropped element
	Hint      string // optional surrounding text for context
}

// Describer generates descriptions for visual elements.
type Describer interface {
	Describe(ctx context.Context, req DescribeRequest) (entity.VisualDescription, error)
}

// OpenAIDescriber implements Describer on the OpenAI chat completions API.
type OpenAIDescriber struct {
	client  *openai.Client
	cfg     common.VisionConfig
	breaker *resilience.Breaker
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewOpenAIDescriber creates the adapter. The breaker must be the
// external-services instance from the run's registry.
func NewOpenAIDescriber(cfg common.VisionConfig, breaker *resilience.Breaker, log *slog.Logger) (*OpenAIDescriber, error) {
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "vision.api_key is required", common.ErrInvalidInput)
	}
	if log == nil {
		log = slog.Default()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &OpenAIDescriber{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}, nil
}

func prompt(class constants.ElementClass) string {
	switch class {
	case constants.ClassTable:
		return "Describe the structure and contents of this table from an exam worksheet. Summarize what each column and row represents."
	case constants.ClassFlowchart:
		return "Describe this diagram from an exam worksheet: its components, connections, and what process it depicts."
	default:
		return "Describe this figure from an exam worksheet so a reader without the image understands what it shows."
	}
}

// Describe generates one description. Rejections while the breaker is open
// surface as resilience.ErrOpen so callers can apply backpressure.
func (d *OpenAIDescriber) Describe(ctx context.Context, req DescribeRequest) (entity.VisualDescription, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return entity.VisualDescription{}, err
	}

	var desc string
	err := d.breaker.Execute(ctx, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()

		userText := prompt(req.Class)
		if req.Hint != "" {
			userText += "\nNearby text: " + req.Hint
		}
		resp, err := d.client.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
			Model: d.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: userText},
						{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: req.ImageURL}},
					},
				},
			},
			MaxTokens:   400,
			Temperature: 0.2,
		})
		if err != nil {
			return fmt.Errorf("vision completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("vision completion: empty response")
		}
		desc = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		d.log.Warn("vision.describe.failed",
			"element_id", req.ElementID,
			"job_id", common.JobIDFromContext(ctx),
			"err", err,
		)
		return entity.VisualDescription{}, err
	}

	d.log.Debug("vision.describe.ok", "element_id", req.ElementID, "class", string(req.Class))
	return entity.VisualDescription{
		ElementID:   req.ElementID,
		Description: desc,
		Confidence:  1.0,
	}, nil
}
