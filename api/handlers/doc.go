// Copyright (c) 2025 BaSui01
//
// 本文件采用 MIT 许可证授权。
// 详见项目根目录的 LICENSE 文件。

/*
Package handlers 提供 TutorFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了所有 HTTP 端点的请求处理逻辑，包括答疑问答、
缓存运维、健康检查以及统一的响应/错误处理。所有 Handler 均遵循
标准 net/http 接口。

# 核心类型

  - AskHandler       — 答疑处理器（POST /api/v1/ask）
  - CacheHandler     — 缓存统计、清空与过期清理
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 生成侧错误脱敏：上游错误文本不会透出给调用方
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
