package kube

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

func writeKubeconfig(t *testing.T, config api.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, clientcmd.WriteToFile(config, path))
	return path
}

func testKubeconfig() api.Config {
	return api.Config{
		CurrentContext: "stackctl-staging",
		Contexts: map[string]*api.Context{
			"stackctl-staging": {Cluster: "staging", AuthInfo: "staging-user"},
			"other":            {Cluster: "other", AuthInfo: "shared-user"},
			"other-admin":      {Cluster: "other", AuthInfo: "shared-user"},
		},
		Clusters: map[string]*api.Cluster{
			"staging": {Server: "https://127.0.0.1:6443"},
			"other":   {Server: "https://127.0.0.1:7443"},
		},
		AuthInfos: map[string]*api.AuthInfo{
			"staging-user": {Token: "a"},
			"shared-user":  {Token: "b"},
		},
	}
}

func TestGetCurrentKubeContext(t *testing.T) {
	tests := []struct {
		name        string
		config      *api.Config
		wantContext string
		wantErr     bool
	}{
		{
			name:        "current context set",
			config:      func() *api.Config { c := testKubeconfig(); return &c }(),
			wantContext: "stackctl-staging",
		},
		{
			name: "current context not set",
			config: &api.Config{
				Contexts: map[string]*api.Context{"another-context": {Cluster: "another-cluster"}},
				Clusters: map[string]*api.Cluster{"another-cluster": {Server: "https://localhost:8081"}},
			},
			wantErr: true,
		},
		{
			name:    "kubeconfig file does not exist",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "does_not_exist")
			if tt.config != nil {
				path = writeKubeconfig(t, *tt.config)
			}
			got, err := GetCurrentKubeContext(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContext, got)
		})
	}
}

func TestRemoveContext(t *testing.T) {
	t.Run("removes unshared cluster and user", func(t *testing.T) {
		path := writeKubeconfig(t, testKubeconfig())
		require.NoError(t, RemoveContext(path, "stackctl-staging"))

		cfg, err := clientcmd.LoadFromFile(path)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Contexts, "stackctl-staging")
		assert.NotContains(t, cfg.Clusters, "staging")
		assert.NotContains(t, cfg.AuthInfos, "staging-user")
		assert.Equal(t, "", cfg.CurrentContext)
		assert.Contains(t, cfg.Contexts, "other")
	})

	t.Run("keeps shared entries", func(t *testing.T) {
		path := writeKubeconfig(t, testKubeconfig())
		require.NoError(t, RemoveContext(path, "other"))

		cfg, err := clientcmd.LoadFromFile(path)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Contexts, "other")
		assert.Contains(t, cfg.Clusters, "other")
		assert.Contains(t, cfg.AuthInfos, "shared-user")
		assert.Equal(t, "stackctl-staging", cfg.CurrentContext)
	})

	t.Run("missing context is a no-op", func(t *testing.T) {
		path := writeKubeconfig(t, testKubeconfig())
		assert.NoError(t, RemoveContext(path, "ghost"))
	})
}

func TestContextExists(t *testing.T) {
	path := writeKubeconfig(t, testKubeconfig())
	ok, err := ContextExists(path, "other")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ContextExists(path, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}
