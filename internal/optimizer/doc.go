// Package optimizer 选择一段驾驶动作序列，使在给定能量预算内行驶的距离最大。
//
// 两种可互换的求解器：
//
//   - DynamicSolver：按能耗建状态表的动态规划，只保留每个能耗值下的最大距离。
//     时间与空间复杂度为 O(N × S)，S 为不同累计能耗值的数量，最坏 S = 2^N；
//     相同能耗的子集会合并为一个状态，实际规模通常远小于上界。
//   - GeneticSolver：随机种群 + 截断选择 + 单点交叉 + 变异的遗传算法。
//
// 求解器是同步、单线程的纯计算，不做 I/O；随机性来自调用方注入的 *rand.Rand，
// 同一种子下结果可复现。
package optimizer
