// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 costs 提供 token 计费账本、预算核算与成本分析。

# 概述

[Tracker] 以每百万 token 的定价累积日/月/总支出，按自然日与
自然月滚动清零；CheckBudget 只做判定，不做拦截，预算执行策略
由调用方决定。

[Analytics] 在账本之上按固定间隔采样快照，提供 1h/24h/7d 趋势、
月度成本预测与独立阈值的预算告警。

[Estimator] 基于 tiktoken 估算请求的 token 数与预期成本，
编码器不可用时退化为 len/4 近似。
*/
package costs
