package database

import (
	"fmt"
	"sync"
	"time"
)

// DatabasePool caches the process-wide database handle so warm serverless
// invocations reuse the connection instead of redialing per request.
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase returns the shared database instance, creating or recreating
// it when the config changed, the connection went stale, or health checks fail.
func GetDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil || shouldRecreateConnection(globalPool, config) {
		if globalPool != nil && globalPool.instance != nil {
			globalPool.instance.Close()
		}

		instance, err := NewDatabase(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		globalPool = &DatabasePool{
			instance: instance,
			config:   config,
			lastUsed: time.Now(),
		}
	} else {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
	}

	return globalPool.instance, nil
}

func shouldRecreateConnection(pool *DatabasePool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}

	if pool.config != newConfig {
		return true
	}

	// Recycle connections idle for more than 30 minutes
	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if expired {
		return true
	}

	if err := pool.instance.HealthCheck(); err != nil {
		fmt.Printf("[warn] database health check failed, recreating: %v\n", err)
		return true
	}

	return false
}

// GetConnectionStats reports pool state for the debug endpoint
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
		"config": map[string]interface{}{
			"use_memory_db": globalPool.config.UseMemoryDB,
			"has_postgres":  globalPool.config.PostgresDSN != "",
		},
	}
}
