// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 AgentGate 服务端程序入口。

# 概述

cmd/gateway 是 AgentGate 的可执行入口，把路由器、成本账本、
缓存与熔断器装配成一个 HTTP 服务。程序支持 YAML 配置文件加载、
结构化日志（zap）与 Prometheus 指标采集。

# 核心类型

  - Server           — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware       — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、RequestLogger、BearerAuth
  - 路由策略：static / tier / cloud，可选故障转移包装
  - 成本接口：/v1/cost/status、trends、prediction、alerts、history
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止快照任务 → 关闭 HTTP → 关闭 Metrics
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
