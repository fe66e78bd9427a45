// Copyright (c) 2025 BaSui01
//
// 本文件采用 MIT 许可证授权。
// 详见项目根目录的 LICENSE 文件。

// Package rag 实现检索增强生成（RAG）的检索侧组件。
//
// 包含以下组件：
//   - Embedder：问题向量化接口及 OpenAI 兼容实现
//   - VectorIndex：向量索引接口，内置内存实现（余弦相似度）和 Pinecone 实现
//   - Retriever：嵌入 + 检索的组合器，负责维度校验和过滤条件规范化
//   - PromptBuilder：基于 token 预算的提示词组装器
//
// 检索失败统一返回 RETRIEVAL_FAILURE 错误码，上层据此进入降级分支。
package rag
