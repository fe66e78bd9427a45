// 版权所有 2026 Tutorflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 types 定义跨包共享的基础类型：统一错误码与结构化错误。

错误按显式标签（ErrorCode）分类，调用方通过 GetErrorCode/IsCode
判断错误种类，绝不依赖错误消息字符串匹配。
*/
package types
