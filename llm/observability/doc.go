// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 提供 LLM 网关的指标采集。

# 概述

路由层通过 Metrics 接口上报请求量、时延、成本、token 用量、
缓存命中率与后端错误。Prometheus 实现将其导出为标准指标，
Nop 实现用于测试与禁用场景。

# 核心类型

  - Metrics：指标上报接口，路由策略只依赖此接口。
  - PromMetrics：Prometheus 实现，注册到显式传入的 Registry。
  - NopMetrics：空实现。
*/
package observability
