// 版权所有 2026 Tutorflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义统一的文本生成 Provider 接口与 OpenAI 兼容实现。

生成调用携带硬超时（context deadline），错误按显式标签分类：
超时（GENERATION_TIMEOUT）、服务错误（GENERATION_SERVICE）与
结构化输出解析失败（GENERATION_PARSE）互相独立。Provider 内部
不做重试，重试预算由上层编排器统一掌握。
*/
package llm
