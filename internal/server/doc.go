// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理网关监听端口的生命周期，支持非阻塞启动、
优雅关闭与系统信号监听。

# 概述

网关对外暴露两个端口：业务端口（补全与成本 API）与指标端口
（Prometheus 抓取）。本包通过 Manager 为每个端口封装一个
net/http.Server，超时参数取自网关的 config.ServerConfig，
统一监听、服务、关闭与错误传播流程。

# 核心类型

  - Manager：单个监听端口的管理器，持有 http.Server、
    net.Listener 与异步错误通道，提供 Start/Shutdown/
    WaitForShutdown 等生命周期方法。构造时以 name 标识
    端口用途（gateway/metrics），作为日志字段输出。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务，主线程不阻塞；
    端口配置为 0 时由系统分配，实际地址通过 Addr 查询。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空与连接释放。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM，收到信号后
    自动触发优雅关闭流程。
  - 状态查询：IsRunning/Addr 提供运行状态与监听地址查询。
*/
package server
