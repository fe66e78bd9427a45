// Copyright (c) 2025 BaSui01
//
// 本文件采用 MIT 许可证授权。
// 详见项目根目录的 LICENSE 文件。

/*
Package testutil 提供 TutorFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，避免各包重复
实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，
    自动注册 Cleanup 防止泄漏

# 子包

  - testutil/mocks: Mock 实现，包括 MockProvider（生成模型）、
    MockRetriever（检索器）、MapQuestionSource（题目上下文源），
    均支持错误注入

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse("hello")
	resp, err := provider.Completion(ctx, req)
	require.NoError(t, err)
*/
package testutil
