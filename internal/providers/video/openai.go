package video

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/SkelleTu/UltraPix/internal/domain"
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	ImageModel   string
	BaseURL      string
	Organization string
	CDNBaseURL   string
	HTTPClient   *http.Client
	OnFallback   func(reason string, err error)
}

// OpenAIProvider plans generations with the chat completions API and renders
// thumbnails with the images API.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	imageModel string
	cdnBaseURL string
	onFallback func(reason string, err error)
	newVideoID func() string
}

const openAIDefaultTimeout = 90 * time.Second

const textPlanSystemPrompt = `You are an expert video generation AI. Given a text prompt, describe how the video should be created: scene composition and camera angles, lighting and color grading, motion and dynamics, visual effects and transitions, audio suggestions.
Respond in JSON: {"videoDescription":string,"scenes":string[],"cameraMovements":string[],"visualEffects":string[],"estimatedDuration":number}`

const imagePlanSystemPrompt = `You are an expert at animating still images into videos. Given an image URL and animation instructions, describe the motion vectors and object movements, physics, lighting changes, camera path and depth, temporal coherence.
Respond in JSON: {"animationPlan":string,"keyFrames":[{"frame":number,"description":string}],"motionVectors":string[],"effects":string[],"estimatedDuration":number}`

const enhanceSystemPrompt = "You are an expert at writing prompts for AI video generation. Enhance the given prompt to be more detailed and effective, focusing on visual elements, camera work, lighting, and composition. Keep it concise but descriptive. Reply with the prompt only."

type textPlan struct {
	VideoDescription  string   `json:"videoDescription"`
	Scenes            []string `json:"scenes"`
	CameraMovements   []string `json:"cameraMovements"`
	VisualEffects     []string `json:"visualEffects"`
	EstimatedDuration float64  `json:"estimatedDuration"`
}

type keyFrame struct {
	Frame       float64 `json:"frame"`
	Description string  `json:"description"`
}

type imagePlan struct {
	AnimationPlan     string     `json:"animationPlan"`
	KeyFrames         []keyFrame `json:"keyFrames"`
	MotionVectors     []string   `json:"motionVectors"`
	Effects           []string   `json:"effects"`
	EstimatedDuration float64    `json:"estimatedDuration"`
}

func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(coalesce(opts.BaseURL, "https://api.openai.com/v1"), "/") + "/"
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: openAIDefaultTimeout}
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		// a failed stage fails the job; no hidden retries behind it
		option.WithMaxRetries(0),
	}
	if org := strings.TrimSpace(opts.Organization); org != "" {
		clientOpts = append(clientOpts, option.WithOrganization(org))
	}
	return &OpenAIProvider{
		client:     openai.NewClient(clientOpts...),
		model:      coalesce(opts.Model, "gpt-4o-mini"),
		imageModel: coalesce(opts.ImageModel, "dall-e-3"),
		cdnBaseURL: coalesce(opts.CDNBaseURL, defaultCDNBaseURL),
		onFallback: opts.OnFallback,
		newVideoID: func() string { return uuid.NewString() },
	}, nil
}

func (o *OpenAIProvider) Name() string {
	return openAIProviderName
}

// Enhance rewrites the prompt. Any failure yields the original prompt.
func (o *OpenAIProvider) Enhance(ctx context.Context, prompt, style string) (string, error) {
	user := fmt.Sprintf("Enhance this video generation prompt for a %s style: %q", coalesce(style, defaultStyle), prompt)
	text, err := o.chat(ctx, enhanceSystemPrompt, user, false)
	if err != nil {
		o.emitFallback("enhance_"+fallbackReason(err), err)
		return prompt, nil
	}
	return coalesce(text, prompt), nil
}

func (o *OpenAIProvider) GenerateFromText(ctx context.Context, params GenerateParams) (*Result, error) {
	style := coalesce(params.Style, defaultStyle)
	user := fmt.Sprintf("Generate a %d-second %s video in %s resolution based on this prompt: %s",
		params.Duration, style, params.Resolution, params.Prompt)
	text, err := o.chat(ctx, textPlanSystemPrompt, user, true)
	if err != nil {
		return nil, fmt.Errorf("%w: generate video: %v", domain.ErrProviderFailure, err)
	}
	plan, err := parseModelPayload[textPlan](text)
	if err != nil {
		return nil, fmt.Errorf("%w: parse video plan: %v", domain.ErrProviderFailure, err)
	}
	meta := map[string]any{
		"description":     coalesce(plan.VideoDescription, params.Prompt),
		"scenes":          stringsOrEmpty(plan.Scenes),
		"cameraMovements": stringsOrEmpty(plan.CameraMovements),
		"visualEffects":   stringsOrEmpty(plan.VisualEffects),
		"provider":        openAIProviderName,
		"model":           o.model,
		"params":          paramsMetadata(params),
	}
	if plan.EstimatedDuration > 0 {
		meta["estimatedDuration"] = plan.EstimatedDuration
	}
	return &Result{VideoURL: videoURL(o.cdnBaseURL, o.newVideoID()), Metadata: meta}, nil
}

func (o *OpenAIProvider) GenerateFromImage(ctx context.Context, params ImageParams) (*Result, error) {
	style := coalesce(params.Style, defaultImageStyle)
	user := fmt.Sprintf("Animate this image (%s) with the following instructions: %s. Duration: %d seconds, Style: %s, Resolution: %s",
		params.SourceImageRef, params.Prompt, params.Duration, style, params.Resolution)
	text, err := o.chat(ctx, imagePlanSystemPrompt, user, true)
	if err != nil {
		return nil, fmt.Errorf("%w: animate image: %v", domain.ErrProviderFailure, err)
	}
	plan, err := parseModelPayload[imagePlan](text)
	if err != nil {
		return nil, fmt.Errorf("%w: parse animation plan: %v", domain.ErrProviderFailure, err)
	}
	keyFrames := plan.KeyFrames
	if keyFrames == nil {
		keyFrames = []keyFrame{}
	}
	meta := map[string]any{
		"animationPlan": coalesce(plan.AnimationPlan, params.Prompt),
		"keyFrames":     keyFrames,
		"motionVectors": stringsOrEmpty(plan.MotionVectors),
		"effects":       stringsOrEmpty(plan.Effects),
		"provider":      openAIProviderName,
		"model":         o.model,
		"params":        paramsMetadata(params.GenerateParams),
	}
	if params.SourceImageRef != "" {
		meta["sourceImageRef"] = params.SourceImageRef
	}
	if plan.EstimatedDuration > 0 {
		meta["estimatedDuration"] = plan.EstimatedDuration
	}
	return &Result{VideoURL: videoURL(o.cdnBaseURL, o.newVideoID()), Metadata: meta}, nil
}

// GenerateThumbnail renders a still frame. Any failure yields "".
func (o *OpenAIProvider) GenerateThumbnail(ctx context.Context, prompt string) (string, error) {
	out, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:   openai.ImageModel(o.imageModel),
		Prompt:  "Create a cinematic still frame for: " + prompt,
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize1024x1024,
		Quality: openai.ImageGenerateParamsQualityStandard,
	})
	if err != nil {
		o.emitFallback("thumbnail_"+fallbackReason(err), err)
		return "", nil
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0].URL) == "" {
		o.emitFallback("thumbnail_empty_data", errors.New("no image url"))
		return "", nil
	}
	return strings.TrimSpace(out.Data[0].URL), nil
}

func (o *OpenAIProvider) chat(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	out, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty response")
	}
	return text, nil
}

func (o *OpenAIProvider) emitFallback(reason string, err error) {
	if o.onFallback != nil {
		o.onFallback(reason, err)
	}
}

func fallbackReason(err error) string {
	var apiErr *openai.Error
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "http_request"
	}
}

var _ Provider = (*OpenAIProvider)(nil)
