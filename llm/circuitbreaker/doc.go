// 版权所有 2024 AgentGate Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 circuitbreaker 提供三态熔断器，保护下游 LLM 后端。

状态机：Closed --连续失败达到阈值--> Open --等待 ResetTimeout-->
HalfOpen --连续两次成功--> Closed；半开探测失败立即回到 Open。

Allow 判定是否放行，Record 登记调用结果，两者分离使包装层可以在
拒绝路径上不产生失败记账。
*/
package circuitbreaker
