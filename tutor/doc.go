// Copyright (c) 2025 BaSui01
//
// 本文件采用 MIT 许可证授权。
// 详见项目根目录的 LICENSE 文件。

/*
包 tutor 实现问答编排器，是整个答疑流水线的顶层协调者。

每个请求按状态机推进：

	START → CACHE_LOOKUP → {命中 → DONE}
	                     → {未命中 → RETRIEVE → ASSEMBLE → GENERATE → STORE → DONE}

检索失败时进入降级分支（DEGRADE）：跳过检索结果直接组装提示词，
sources 为空、置信度降低，但仍返回正常回答而非错误。生成失败经过
一次有界重试后进入 FAIL 终态，错误带明确的错误码供 API 层翻译。

并发的相同未命中请求通过 singleflight 合并，只触发一次生成调用。
*/
package tutor
