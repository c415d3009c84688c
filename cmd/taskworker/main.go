package main

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/abhishec/purple-agent/internal/bandit"
	"github.com/abhishec/purple-agent/internal/caselog"
	"github.com/abhishec/purple-agent/internal/classifier"
	"github.com/abhishec/purple-agent/internal/config"
	"github.com/abhishec/purple-agent/internal/knowledge"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/llm/openai"
	"github.com/abhishec/purple-agent/internal/policy"
	"github.com/abhishec/purple-agent/internal/sessionstore"
	"github.com/abhishec/purple-agent/internal/synth"
	"github.com/abhishec/purple-agent/internal/transport"
	"github.com/abhishec/purple-agent/internal/verify"
	"github.com/abhishec/purple-agent/internal/worker"
)

func main() {
	config.LoadEnv()
	settings := config.LoadSettings()
	if settings.AnthropicAPIKey == "" {
		log.Fatal("ANTHROPIC_API_KEY is required")
	}

	fastCfg, err := openai.FastConfigFromEnv()
	if err != nil {
		log.Fatalf("fast model config: %v", err)
	}
	strongCfg, err := openai.StrongConfigFromEnv()
	if err != nil {
		log.Fatalf("strong model config: %v", err)
	}
	fastClient, err := openai.NewClient(fastCfg)
	if err != nil {
		log.Fatalf("fast model client: %v", err)
	}
	strongClient, err := openai.NewClient(strongCfg)
	if err != nil {
		log.Fatalf("strong model client: %v", err)
	}
	fast, strong := llm.Provider(fastClient), llm.Provider(strongClient)

	dataDir := settings.CacheDir
	dataPath := func(name string) string { return filepath.Join(dataDir, name) }

	caseLog, err := caselog.NewLog(dataPath("case_log.json"))
	if err != nil {
		log.Fatalf("case log: %v", err)
	}
	strategyBandit, err := bandit.New(dataPath("strategy_bandit.json"))
	if err != nil {
		log.Fatalf("bandit: %v", err)
	}
	kb, err := knowledge.NewKnowledgeBase(dataPath("knowledge_base.json"))
	if err != nil {
		log.Fatalf("knowledge base: %v", err)
	}
	entityMem, err := knowledge.NewMemory(dataPath("entity_memory.json"))
	if err != nil {
		log.Fatalf("entity memory: %v", err)
	}
	accuracy := knowledge.NewAccuracyTracker()

	taskClassifier, err := classifier.NewClassifier(dataPath("synthesized_definitions.json"), fast)
	if err != nil {
		log.Fatalf("classifier: %v", err)
	}
	synthRegistry, err := synth.NewRegistry(dataPath("tool_registry.json"), fast)
	if err != nil {
		log.Fatalf("synth registry: %v", err)
	}

	policyEvaluator := policy.NewEvaluator()
	verifier := verify.New(fast, strong)

	sessionTTL := sessionstore.DefaultTTL
	sessions := sessionstore.NewStore(sessionTTL, 40)

	w := worker.New(worker.Options{
		Fast:   fast,
		Strong: strong,

		Sessions:   sessions,
		CaseLog:    caseLog,
		Bandit:     strategyBandit,
		KB:         kb,
		EntityMem:  entityMem,
		Accuracy:   accuracy,
		Classifier: taskClassifier,
		Policy:     policyEvaluator,
		Synth:      synthRegistry,
		Verifier:   verifier,

		TaskTimeout: time.Duration(settings.TaskTimeout) * time.Second,
		ToolTimeout: time.Duration(settings.ToolTimeout) * time.Second,
	})

	fmt.Printf("task worker: fast=%s strong=%s\n", fastClient.Name(), strongClient.Name())

	server := transport.NewServer(w, transport.HealthInfo{
		FastModel:    fastClient.Name(),
		StrongModel:  strongClient.Name(),
		CaseLog:      caseLog,
		Bandit:       strategyBandit,
		SessionCount: sessions.Count,
	}, transport.AgentCard{
		Name:        "purple-agent",
		Description: "Multi-strategy task orchestrator: FSM, five-phase, and Mixture-of-Agents execution over tool-using workflows.",
		Version:     "0.1.0",
		Capabilities: []string{
			"tasks/send",
			"tool_calling",
			"policy_evaluation",
			"human_in_the_loop_approval",
			"reinforcement_learned_strategy_selection",
		},
		Models: transport.AgentCardModel{Fast: fastClient.Name(), Strong: strongClient.Name()},
	})

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
