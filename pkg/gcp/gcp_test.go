package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestClientOptions(t *testing.T) {
	assert.Len(t, ClientOptions(config.GCPConfig{CredentialsJSON: `{}`, ApplicationCredentials: "/tmp/x"}), 1)
	assert.Len(t, ClientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/x"}), 1)
	assert.Empty(t, ClientOptions(config.GCPConfig{CredentialsJSON: "  "}))
}

func TestProjectID(t *testing.T) {
	id, err := ProjectID(config.GCPConfig{ProjectID: " proj "})
	require.NoError(t, err)
	assert.Equal(t, "proj", id)

	_, err = ProjectID(config.GCPConfig{})
	assert.ErrorIs(t, err, ErrProjectIDRequired)
}

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, collection, name, want string
	}{
		{"proj", "topics", "storefront-analytics", "projects/proj/topics/storefront-analytics"},
		{"proj", "subscriptions", " analytics-sub ", "projects/proj/subscriptions/analytics-sub"},
		{"proj", "topics", "projects/other/topics/t1", "projects/other/topics/t1"},
		{"proj", "topics", "projects/other/subscriptions/s1", "projects/proj/topics/projects/other/subscriptions/s1"},
		{"proj", "topics", "", ""},
		{"", "topics", "t1", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResourceName(tc.project, tc.collection, tc.name), tc.name)
	}
}
