package service

import (
	"context"

	"github.com/Strob0t/CodeForge/internal/port/deploy"
	"github.com/Strob0t/CodeForge/internal/port/secrets"
)

type fakeDeployer struct {
	result deploy.Result
	err    error
	calls  []deploy.Request
}

func (f *fakeDeployer) Deploy(_ context.Context, req deploy.Request) (deploy.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return deploy.Result{}, f.err
	}
	return f.result, nil
}

type fakeSecrets struct {
	creds *secrets.CloudflareCredentials
	err   error
}

func (f *fakeSecrets) GetCloudflareCredentials(_ context.Context, _ string) (*secrets.CloudflareCredentials, error) {
	return f.creds, f.err
}
