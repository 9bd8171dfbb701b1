// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型路由层，包括 Provider 抽象、
三种路由策略、故障转移与复杂度评估。

# 概述

本包屏蔽不同模型后端在接口与错误语义上的差异，对上层暴露一致的
补全请求与响应模型。路由器本身实现 Provider 接口，可以任意组合：
故障转移编排器可以包装路由器，路由器也可以作为另一个编排器的后端。

# 路由策略

  - [StaticRouter]：按模型名前缀查有序路由表，未命中走全局回退链
  - [TierRouter]：按 Agent 档位（local/cloud/hybrid）选择后端，
    hybrid 档位通过 [AssessComplexity] 评分决定升级云端
  - [CloudRouter]：纯云路由，聚合商（openrouter）优先于厂商直连

# 弹性

  - [BreakerProvider]：单后端熔断包装，委托 circuitbreaker 包
  - [FailoverProvider]：按序尝试多个后端，跳过熔断打开的后端

# 错误

网关层错误统一为 [Error]，携带错误码、来源 Provider 与可重试标记，
支持 errors.Is / errors.As 解包。
*/
package llm
