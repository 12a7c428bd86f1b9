/*
Package agent - 外部 Agent 边界

负责：
- Agent 服务的单次同步调用契约
- 静态 Agent 目录与角色装饰
*/
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/forgeflow/kernel/config"
)

// Gateway 外部处理能力的窄接口
//
// 编排器只依赖这一个同步调用; 失败消息会原样成为任务的 result。
type Gateway interface {
	// Process 处理任务, 返回结果文本
	Process(ctx context.Context, taskID, description string) (string, error)

	// Available 能力是否就绪 (未就绪时提交会被整体拒绝)
	Available() bool
}

// HTTPGateway 通过 HTTP 调用远端 Agent 服务
type HTTPGateway struct {
	cfg    config.AgentConfig
	client *http.Client
}

// NewHTTPGateway 创建 HTTP Agent 网关
func NewHTTPGateway(cfg config.AgentConfig) *HTTPGateway {
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout.Std()},
	}
}

// Available API Key 缺失时能力视为未就绪
func (g *HTTPGateway) Available() bool {
	return g.cfg.APIKey != ""
}

type processRequest struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}

type processResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Process 同步调用 Agent 服务
func (g *HTTPGateway) Process(ctx context.Context, taskID, description string) (string, error) {
	body, err := json.Marshal(processRequest{
		TaskID:      taskID,
		Description: description,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("task_id", taskID).
			Msg("Agent 服务返回异常状态")
		return "", fmt.Errorf("agent service returned status %d", resp.StatusCode)
	}

	var out processResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("invalid agent response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%s", out.Error)
	}

	return out.Result, nil
}
