// Copyright (c) TutorFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 TutorFlow 服务端程序入口。

# 概述

cmd/tutorflow 是 TutorFlow 答疑后端的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、结构化日志
（zap）、Prometheus 指标采集以及 OpenTelemetry 追踪。

# 核心类型

  - Server     — 主服务器，组装答疑流水线并管理 HTTP 端口及优雅关闭
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 流水线组装：缓存 → 嵌入 → 向量检索 → 提示词组装 → 生成
  - 向量后端：memory（内置精确检索）或 pinecone
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    OTelTracing、Metrics、RateLimiter（基于 IP）、APIKeyAuth（X-API-Key）
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止限流清理 → 停止缓存清扫 → 关闭 HTTP →
    关闭 Metrics → 关闭遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
