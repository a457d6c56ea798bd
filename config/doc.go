// config 包提供工作流引擎的配置加载能力。
//
// 配置来源按优先级依次为默认值、YAML 文件与环境变量，
// 环境变量采用 AGENTSCOPE_ 前缀的层级命名（如 AGENTSCOPE_ENGINE_MAX_RETRIES）。
package config
