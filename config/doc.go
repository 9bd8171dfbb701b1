// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package config 提供 AgentGate 的配置管理功能。
//
// 支持从默认值、YAML 文件和环境变量加载配置，
// 覆盖服务器、路由策略、预算、缓存、熔断器与日志等配置段。
package config
