// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// SignFunc signs the bytes of a V4 signed URL.
type SignFunc func(ctx context.Context, payload []byte) ([]byte, error)

// gcsStorage implements Storage on a Google Cloud Storage bucket.
type gcsStorage struct {
	client      *storage.Client
	bucket      string
	signerEmail string
	sign        SignFunc
}

// NewGCS creates the GCS backed store. When signerEmail is set, presigned URLs
// are signed through the IAM credentials SignBlob API on behalf of that service
// account; otherwise the client's own credentials sign them.
func NewGCS(client *storage.Client, bucket string, signerEmail string, iamClient *credentials.IamCredentialsClient) (Storage, error) {
	if client == nil {
		return nil, errors.New("gcs storage client is required")
	}
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	s := &gcsStorage{client: client, bucket: bucket, signerEmail: signerEmail}
	if signerEmail != "" {
		if iamClient == nil {
			return nil, errors.New("iam credentials client is required to sign as " + signerEmail)
		}
		s.sign = IAMSigner(iamClient, signerEmail)
	}
	return s, nil
}

// IAMSigner signs payloads with the IAM credentials API as serviceAccount.
func IAMSigner(iamClient *credentials.IamCredentialsClient, serviceAccount string) SignFunc {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		resp, err := iamClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
			Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", serviceAccount),
			Payload: payload,
		})
		if err != nil {
			return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
		}
		return resp.SignedBlob, nil
	}
}

func (g *gcsStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = opt.ContentType
	writer.Metadata = opt.Metadata

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return ObjectInfo{}, fmt.Errorf("failed to copy to gs://%s/%s: %w", g.bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to finalize gs://%s/%s: %w", g.bucket, key, err)
	}
	return objectInfo(key, writer.Attrs()), nil
}

func (g *gcsStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj := g.client.Bucket(g.bucket).Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("failed to stat gs://%s/%s: %w", g.bucket, key, err)
	}
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("failed to read gs://%s/%s: %w", g.bucket, key, err)
	}
	return reader, objectInfo(key, attrs), nil
}

func (g *gcsStorage) Delete(ctx context.Context, key string) error {
	return g.client.Bucket(g.bucket).Object(key).Delete(ctx)
}

func (g *gcsStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}
	if g.sign != nil {
		opts.GoogleAccessID = g.signerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			return g.sign(ctx, b)
		}
	}
	u, err := g.client.Bucket(g.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", g.bucket, key, err)
	}
	return u, nil
}

func objectInfo(key string, attrs *storage.ObjectAttrs) ObjectInfo {
	if attrs == nil {
		return ObjectInfo{Key: key}
	}
	return ObjectInfo{
		Key:          key,
		Size:         attrs.Size,
		ETag:         attrs.Etag,
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
		Metadata:     attrs.Metadata,
	}
}
