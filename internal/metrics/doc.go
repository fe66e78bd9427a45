// Copyright (c) 2025 BaSui01
//
// 本文件采用 MIT 许可证授权。
// 详见项目根目录的 LICENSE 文件。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、问答流水线、缓存、检索与生成五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 主要能力

  - HTTP 指标：请求总数与耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 问答指标：请求总数与端到端耗时（按 hit/miss/degraded/error
    分组）、降级回答计数。
  - 缓存指标：命中/未命中/驱逐计数与当前条目数，按 cache_type 分组。
  - 检索指标：嵌入加检索耗时、每次检索返回的段落数。
  - 生成指标：调用总数、耗时、Token 用量（prompt/completion），
    按 provider/model 分组。
*/
package metrics
