/*
Package relay - 跨实例事件中继

负责：
- 将本地广播信封镜像发布到 Redis 频道
- 订阅其他实例发布的信封并转投本地连接

中继是尽力而为的: 发布失败只记日志, 不影响本地广播路径。
任务历史仍然只存在于各进程内存中, 中继不做任何持久化。
*/
package relay

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/forgeflow/kernel/config"
	"github.com/forgeflow/kernel/realtime"
)

// 发布队列长度, 写满时丢弃 (广播路径不允许被中继拖慢)
const publishQueueSize = 256

// payload Redis 频道上的消息
type payload struct {
	Instance string            `json:"instance"`
	Envelope realtime.Envelope `json:"envelope"`
}

// Relay Redis 广播中继
type Relay struct {
	cfg        config.RelayConfig
	registry   *realtime.Registry
	client     *redis.Client
	instanceID string
	outbound   chan realtime.Envelope
}

// New 创建中继并挂接到注册表的镜像钩子
func New(cfg config.RelayConfig, registry *realtime.Registry) *Relay {
	r := &Relay{
		cfg:        cfg,
		registry:   registry,
		instanceID: uuid.New().String(),
		outbound:   make(chan realtime.Envelope, publishQueueSize),
	}
	registry.SetMirror(r.Mirror)
	return r
}

// Mirror 接收本地信封, 非阻塞入队
func (r *Relay) Mirror(env realtime.Envelope) {
	select {
	case r.outbound <- env:
	default:
		log.Warn().Str("type", env.Type).Msg("中继发布队列已满, 丢弃事件")
	}
}

// Start 启动发布与订阅循环
func (r *Relay) Start(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{
		Addr:     r.cfg.Addr,
		Password: r.cfg.Password,
		DB:       r.cfg.DB,
	})

	if err := r.client.Ping(ctx).Err(); err != nil {
		return err
	}

	go r.publishLoop(ctx)
	go r.subscribeLoop(ctx)

	log.Info().
		Str("addr", r.cfg.Addr).
		Str("channel", r.cfg.Channel).
		Str("instance", r.instanceID).
		Msg("事件中继已启动")

	return nil
}

// publishLoop 把本地信封发布到 Redis 频道
func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.client.Close()
			return
		case env := <-r.outbound:
			data, err := json.Marshal(payload{
				Instance: r.instanceID,
				Envelope: env,
			})
			if err != nil {
				continue
			}
			if err := r.client.Publish(ctx, r.cfg.Channel, data).Err(); err != nil {
				log.Warn().Err(err).Msg("中继发布失败")
			}
		}
	}
}

// subscribeLoop 转投其他实例的信封
func (r *Relay) subscribeLoop(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, r.cfg.Channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var p payload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				log.Warn().Err(err).Msg("中继消息解析失败")
				continue
			}
			// 跳过自己发布的事件
			if p.Instance == r.instanceID {
				continue
			}
			r.registry.Forward(p.Envelope)
		}
	}
}
