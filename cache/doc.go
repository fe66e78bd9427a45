// 版权所有 2026 Tutorflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供问答响应缓存：指纹键生成与进程内 LRU + TTL 缓存。

# 概述

相同问题在教学场景中高频重复。本包通过指纹键（规范化问题 + 上下文
标识 + 模型标签的 Hash）缓存完整答案，避免重复的检索与生成调用。

# 核心类型

  - Fingerprinter：确定性缓存键生成，规范化仅做 trim/小写/空白折叠，
    不做语义去重（这是文档化的限制，不是缺陷）。
  - ResponseCache：LRU + TTL 缓存，Lookup/Store/Clear/Cleanup/Stats。
    hits/misses 为进程生命周期计数，Clear 不重置，便于运营方评估
    跨清理周期的整体命中率。
  - Sweeper：周期性过期清扫任务，显式 Start/Stop 信号。

# 设计决策

缓存为进程本地、重启即冷，不落盘、不共享（见仓库 DESIGN.md）。
指纹为全局作用域（不含 userId），相同问题跨用户共享答案。
容量淘汰策略为 LRU。
*/
package cache
