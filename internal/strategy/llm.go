package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"moex-trader/internal/config"
	"moex-trader/internal/marketdata"
)

var _ Strategy = (*LLM)(nil)

// LLM 将K线交给大模型判定买入与否。
type LLM struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewLLM 使用给定配置创建大模型策略。
func NewLLM(cfg config.OpenAIConfig, logger *zap.Logger) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &LLM{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(clientConfig),
	}, nil
}

const llmPromptTemplate = `You are a trading signal generator. Given one OHLCV candle for %s, decide whether to hold a long position after this candle.
Candle: open=%.4f high=%.4f low=%.4f close=%.4f volume=%.2f end=%s
Respond with strict JSON only: {"signal": true} to buy/hold, {"signal": false} to exit.`

type llmVerdict struct {
	Signal bool `json:"signal"`
}

// Evaluate 请求模型并解析其 JSON 判定。
func (l *LLM) Evaluate(ctx context.Context, candle marketdata.Candle) (bool, error) {
	prompt := fmt.Sprintf(llmPromptTemplate,
		candle.Instrument,
		candle.Open, candle.High, candle.Low, candle.Close, candle.Volume,
		candle.End.Format(time.RFC3339),
	)

	response, err := l.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return false, fmt.Errorf("调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return false, errors.New("OpenAI 返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	verdict, err := parseVerdict(rawContent)
	if err != nil {
		l.logger.Error("解析模型判定失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return false, err
	}

	return verdict.Signal, nil
}

func parseVerdict(content string) (llmVerdict, error) {
	payload, err := extractJSON(content)
	if err != nil {
		return llmVerdict{}, err
	}

	var verdict llmVerdict
	if err = json.Unmarshal(payload, &verdict); err != nil {
		return llmVerdict{}, fmt.Errorf("解析判定JSON失败: %w", err)
	}

	return verdict, nil
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
