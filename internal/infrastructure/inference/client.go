package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"github.com/convohq/chat-api/internal/infrastructure/logger"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const (
	defaultStreamTimeout = 120 * time.Second
	channelBufferSize    = 100
	errorBufferSize      = 10
	dataPrefix           = "data: "
	doneMarker           = "[DONE]"
	scannerInitialBuffer = 12 * 1024        // 12KB
	scannerMaxBuffer     = 10 * 1024 * 1024 // 10MB
)

// Delta is one streamed increment of assistant output.
type Delta struct {
	Content   string
	Reasoning string
}

// EmitFunc receives each delta as it arrives. Returning an error aborts the
// stream; the underlying request is cancelled.
type EmitFunc func(Delta) error

type streamChoice struct {
	Delta struct {
		Content          string            `json:"content"`
		ReasoningContent string            `json:"reasoning_content"`
		ToolCalls        []openai.ToolCall `json:"tool_calls,omitempty"`
	} `json:"delta"`
}

type toolCallAccumulator struct {
	ID       string
	Type     string
	Index    int
	Function struct {
		Name      string
		Arguments string
	}
	Complete bool
}

// Client talks to one OpenAI-compatible completion endpoint.
type Client struct {
	client        *resty.Client
	baseURL       string
	apiKey        string
	name          string
	streamTimeout time.Duration
}

func NewClient(client *resty.Client, name, baseURL, apiKey string) *Client {
	return &Client{
		client:        client,
		baseURL:       normalizeBaseURL(baseURL),
		apiKey:        apiKey,
		name:          name,
		streamTimeout: defaultStreamTimeout,
	}
}

// SetStreamTimeout overrides the per-call streaming ceiling. The ceiling is a
// backstop; callers normally carry a tighter deadline on their context.
func (c *Client) SetStreamTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.streamTimeout = timeout
	}
}

func (c *Client) Name() string {
	return c.name
}

// CreateChatCompletion performs a blocking, non-streaming completion. Used
// for title generation.
func (c *Client) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := c.prepareRequest(ctx).
		SetBody(request).
		SetResult(&respBody).
		Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "completion request failed")
	}
	return &respBody, nil
}

// StreamChatCompletion streams a completion, handing every delta to emit as
// it arrives, and returns the fully accumulated response when the upstream
// signals [DONE]. Tool call fragments are assembled into complete calls on
// the returned message.
func (c *Client) StreamChatCompletion(ctx context.Context, request openai.ChatCompletionRequest, emit EmitFunc) (*openai.ChatCompletionResponse, error) {
	request.Stream = true
	request.StreamOptions = &openai.StreamOptions{
		IncludeUsage: true,
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	dataChan := make(chan string, channelBufferSize)
	errChan := make(chan error, errorBufferSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go c.streamResponseToChannel(streamCtx, request, dataChan, errChan, &wg)

	var contentBuilder strings.Builder
	var reasoningBuilder strings.Builder
	toolCalls := make(map[int]*toolCallAccumulator)
	usage := openai.Usage{}

	streamingComplete := false
	for !streamingComplete {
		select {
		case line, ok := <-dataChan:
			if !ok {
				streamingComplete = true
				break
			}

			data, found := strings.CutPrefix(line, dataPrefix)
			if !found {
				continue
			}
			if data == doneMarker {
				streamingComplete = true
				cancel()
				break
			}

			choice, chunkUsage := c.processStreamChunk(data)
			if chunkUsage != nil {
				usage = *chunkUsage
			}
			if choice == nil {
				continue
			}

			if choice.Delta.Content != "" {
				contentBuilder.WriteString(choice.Delta.Content)
			}
			if choice.Delta.ReasoningContent != "" {
				reasoningBuilder.WriteString(choice.Delta.ReasoningContent)
			}
			for i := range choice.Delta.ToolCalls {
				c.accumulateToolCall(&choice.Delta.ToolCalls[i], toolCalls)
			}

			if choice.Delta.Content != "" || choice.Delta.ReasoningContent != "" {
				err := emit(Delta{
					Content:   choice.Delta.Content,
					Reasoning: choice.Delta.ReasoningContent,
				})
				if err != nil {
					cancel()
					wg.Wait()
					return nil, platformerrors.AsError(streamCtx, platformerrors.LayerInfrastructure, err, "delta emit failed")
				}
			}

		case err, ok := <-errChan:
			if ok && err != nil {
				cancel()
				wg.Wait()
				return nil, platformerrors.AsError(streamCtx, platformerrors.LayerInfrastructure, err, "streaming error")
			}

		case <-streamCtx.Done():
			wg.Wait()
			return nil, platformerrors.AsError(streamCtx, platformerrors.LayerInfrastructure, streamCtx.Err(), "streaming context cancelled")
		}
	}

	cancel()
	wg.Wait()

	response := c.buildCompleteResponse(contentBuilder.String(), reasoningBuilder.String(), toolCalls, request.Model, usage)
	return &response, nil
}

func (c *Client) prepareRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	req.SetHeader("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	return req
}

func (c *Client) endpoint(path string) string {
	if path == "" {
		return c.baseURL
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *Client) errorFromResponse(ctx context.Context, resp *resty.Response, message string) error {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, message, nil, "")
	}
	defer resp.RawResponse.Body.Close()
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, message, nil, "")
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, message, nil, "")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: %s", message, trimmed), nil, "")
}

func (c *Client) doStreamingRequest(ctx context.Context, request openai.ChatCompletionRequest) (*resty.Response, error) {
	req := c.prepareRequest(ctx).
		SetBody(request).
		SetDoNotParseResponse(true)

	req.SetHeader("Accept-Encoding", "identity")

	resp, err := req.Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "streaming request failed")
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "streaming request failed: empty response body", nil, "")
	}
	return resp, nil
}

func (c *Client) streamResponseToChannel(ctx context.Context, request openai.ChatCompletionRequest, dataChan chan<- string, errChan chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(dataChan)

	resp, err := c.doStreamingRequest(ctx, request)
	if err != nil {
		c.sendAsyncError(errChan, err)
		return
	}

	defer func() {
		if closeErr := resp.RawResponse.Body.Close(); closeErr != nil {
			log := logger.GetLogger()
			log.Error().Err(closeErr).Str("client", c.name).Msg("unable to close response body")
		}
	}()

	scanner := bufio.NewScanner(resp.RawResponse.Body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		select {
		case dataChan <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.sendAsyncError(errChan, err)
	}
}

func (c *Client) processStreamChunk(data string) (*streamChoice, *openai.Usage) {
	var streamData struct {
		Choices []streamChoice `json:"choices"`
		Usage   *openai.Usage  `json:"usage"`
	}

	if err := json.Unmarshal([]byte(data), &streamData); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Str("client", c.name).Msg("failed to parse stream chunk JSON")
		return nil, nil
	}

	result := &streamChoice{}
	for _, choice := range streamData.Choices {
		if choice.Delta.Content != "" {
			result.Delta.Content += choice.Delta.Content
		}
		if choice.Delta.ReasoningContent != "" {
			result.Delta.ReasoningContent += choice.Delta.ReasoningContent
		}
		if len(choice.Delta.ToolCalls) > 0 {
			result.Delta.ToolCalls = append(result.Delta.ToolCalls, choice.Delta.ToolCalls...)
		}
	}
	return result, streamData.Usage
}

func (c *Client) accumulateToolCall(toolCall *openai.ToolCall, accumulator map[int]*toolCallAccumulator) {
	if toolCall == nil || toolCall.Index == nil {
		return
	}

	index := *toolCall.Index
	if accumulator[index] == nil {
		accumulator[index] = &toolCallAccumulator{
			ID:    toolCall.ID,
			Type:  string(toolCall.Type),
			Index: index,
		}
	}

	if toolCall.ID != "" {
		accumulator[index].ID = toolCall.ID
	}
	if toolCall.Function.Name != "" {
		accumulator[index].Function.Name = toolCall.Function.Name
	}
	if toolCall.Function.Arguments != "" {
		accumulator[index].Function.Arguments += toolCall.Function.Arguments
	}

	if accumulator[index].Function.Name != "" && strings.HasSuffix(accumulator[index].Function.Arguments, "}") {
		accumulator[index].Complete = true
	}
}

func (c *Client) buildCompleteResponse(content, reasoning string, accumulator map[int]*toolCallAccumulator, model string, usage openai.Usage) openai.ChatCompletionResponse {
	message := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: content,
	}
	if reasoning != "" {
		message.ReasoningContent = reasoning
	}

	finishReason := openai.FinishReasonStop
	var toolCalls []openai.ToolCall
	for _, acc := range accumulator {
		if acc != nil && acc.Complete {
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   acc.ID,
				Type: openai.ToolType(acc.Type),
				Function: openai.FunctionCall{
					Name:      acc.Function.Name,
					Arguments: acc.Function.Arguments,
				},
			})
		}
	}
	if len(toolCalls) > 0 {
		message.ToolCalls = toolCalls
		finishReason = openai.FinishReasonToolCalls
	}

	return openai.ChatCompletionResponse{
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      message,
				FinishReason: finishReason,
			},
		},
		Usage: usage,
	}
}

func (c *Client) sendAsyncError(errChan chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errChan <- err:
	default:
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(base string) string {
	trimmed := strings.TrimSpace(base)
	return strings.TrimRight(trimmed, "/")
}
