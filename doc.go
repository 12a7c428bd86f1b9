/*
Package kernel - ForgeFlow 任务内核

内核分为两部分：
1. API Server - 处理任务提交 / 查询的 HTTP 与 WebSocket 请求
2. Task Core - 任务生命周期编排、实时事件广播与指标收集
*/
package kernel
