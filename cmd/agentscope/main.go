// =============================================================================
// AgentScope 工作流运行器
// =============================================================================
// 命令行入口：加载配置，构建工作流图，驱动引擎执行一轮对话。
// 暂停在人工节点时保存检查点，携带 --thread 再次调用即恢复执行。
//
// 使用方法:
//
//	agentscope run --workflow flow.yaml --input "查一下杭州的天气"
//	agentscope run --workflow flow.yaml --thread t1 --input "周末两天"
//	agentscope validate --workflow flow.yaml
//	agentscope version
// =============================================================================

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/modelscope/agentscope-sub001/checkpoint"
	"github.com/modelscope/agentscope-sub001/config"
	"github.com/modelscope/agentscope-sub001/internal/database"
	"github.com/modelscope/agentscope-sub001/internal/telemetry"
	"github.com/modelscope/agentscope-sub001/types"
	"github.com/modelscope/agentscope-sub001/workflow"
	"github.com/modelscope/agentscope-sub001/workflow/nodes"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runWorkflow(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🚀 run 命令
// =============================================================================

func runWorkflow(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	workflowPath := fs.String("workflow", "", "Path to workflow definition")
	input := fs.String("input", "", "User input message for this turn")
	threadID := fs.String("thread", "", "Thread id for checkpoint resume")
	fs.Parse(args)

	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "run: --workflow is required")
		os.Exit(1)
	}

	// 加载配置
	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := cfg.Log.BuildLogger()
	defer logger.Sync()

	// 初始化遥测
	providers, err := telemetry.Init(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		logger.Fatal("telemetry init failed", zap.Error(err))
	}
	defer providers.Shutdown(context.Background())

	// 构建工作流图
	graph, err := buildGraph(*workflowPath)
	if err != nil {
		logger.Fatal("workflow build failed", zap.Error(err))
	}

	// Ctrl-C 取消本轮执行
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 检查点管理器
	manager, cleanup, err := buildCheckpointManager(cfg, logger)
	if err != nil {
		logger.Fatal("checkpoint store init failed", zap.Error(err))
	}
	defer cleanup()

	// 组装本轮请求：有历史检查点则恢复，否则开新对话
	req := workflow.RunRequest{}
	if *input != "" {
		req.PriorMessages = []types.Message{types.NewUserMessage(*input)}
	}
	if *threadID != "" {
		snap, err := manager.Resume(ctx, *threadID)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			// 新线程，从头执行
		case err != nil:
			logger.Fatal("checkpoint load failed", zap.Error(err))
		default:
			// 恢复：从暂停边界继续，本轮输入作为人工节点的回答。
			// 会话条目由新一轮消息重建，所以从快照中剔除。
			starts := resumeStartNodes(graph, snap)
			delete(snap.Entries, workflow.SessionNodeID)
			snap.Messages = append(snap.Messages, req.PriorMessages...)
			req.Snapshot = snap
			req.StartNodes = starts
			req.PriorMessages = snap.Messages
		}
	}

	// 引擎选项
	opts := []workflow.Option{
		workflow.WithConfig(workflow.Config{
			MaxRetries:    cfg.Engine.MaxRetries,
			RetryInterval: cfg.Engine.RetryInterval,
			RetryJitter:   cfg.Engine.RetryJitter,
			PollInterval:  cfg.Engine.PollInterval,
			QueueSize:     cfg.Engine.QueueSize,
		}),
		workflow.WithLogger(logger),
		workflow.WithMetrics("agentscope", nil),
	}
	if cfg.Engine.Concurrent {
		opts = append(opts, workflow.WithConcurrency(cfg.Engine.MaxConcurrency))
	}

	run, err := workflow.NewEngine(graph, opts...).Run(ctx, req)
	if err != nil {
		logger.Fatal("run failed to start", zap.Error(err))
	}

	for p := range run.Progress() {
		printProgress(p)
	}

	// 暂停在人工节点：保存检查点等待下一轮
	if *threadID != "" && run.Status() == types.RunStatusRunning {
		cp, err := manager.Create(ctx, *threadID, "", run.Snapshot())
		if err != nil {
			logger.Fatal("checkpoint save failed", zap.Error(err))
		}
		fmt.Printf("\nPaused at %v, checkpoint v%d saved. Resume with --thread %s\n",
			run.PauseNodes(), cp.Version, *threadID)
		return
	}

	usage := run.Usage()
	fmt.Printf("\nRun %s (calls=%d, tokens=%d)\n", run.Status(), usage.Calls, usage.TotalTokens)
	if run.Status() == types.RunStatusFailed {
		os.Exit(1)
	}
}

// buildGraph 加载并实例化工作流定义
func buildGraph(path string) (*workflow.Graph, error) {
	def, err := workflow.LoadDefinitionFile(path)
	if err != nil {
		return nil, err
	}
	return def.Build(nodes.DefaultRegistry())
}

// buildCheckpointManager 按配置选择检查点后端：
// 配置了 Redis 地址用 Redis，否则落到关系型数据库。
func buildCheckpointManager(cfg *config.Config, logger *zap.Logger) (*checkpoint.Manager, func(), error) {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		store := checkpoint.NewRedisStore(client, logger,
			checkpoint.WithTTL(cfg.Redis.CheckpointTTL))
		return checkpoint.NewManager(store, logger), func() { client.Close() }, nil
	}

	pool, err := database.Open(database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN(),
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := checkpoint.NewGormStore(pool.DB(), logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return checkpoint.NewManager(store, logger), func() { pool.Close() }, nil
}

// resumeStartNodes 计算恢复执行的起点：上一轮暂停边界上尚未执行的人工节点。
func resumeStartNodes(g *workflow.Graph, snap *types.Snapshot) []string {
	starts, err := g.DefaultStartNodes()
	if err != nil {
		return nil
	}
	var resume []string
	for _, id := range g.PauseNodesFrom(starts) {
		if _, done := snap.Entries[id]; !done {
			resume = append(resume, id)
		}
	}
	return resume
}

// printProgress 输出一条进度
func printProgress(p workflow.Progress) {
	if p.Final || p.NodeID == "" || p.Entry == nil {
		return
	}
	fmt.Printf("[%s] %s %s\n", p.NodeID, p.Entry.Status, p.Entry.Message)
}

// =============================================================================
// ✅ validate 命令
// =============================================================================

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "Path to workflow definition")
	fs.Parse(args)

	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "validate: --workflow is required")
		os.Exit(1)
	}

	graph, err := buildGraph(*workflowPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid workflow: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: %d nodes\n", graph.Len())
}

// =============================================================================
// ℹ️ version / help
// =============================================================================

func printVersion() {
	fmt.Printf("AgentScope Workflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`AgentScope Workflow Runner

Usage:
  agentscope run --workflow <file> [--config <file>] [--input <text>] [--thread <id>]
  agentscope validate --workflow <file>
  agentscope version

Commands:
  run        Execute one turn of a workflow
  validate   Parse and validate a workflow definition
  version    Show version information`)
}
