package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"replicas/internal/api"
)

// manifest is the YAML document read by `replicas import`.
type manifest struct {
	Datafiles []manifestDatafile `yaml:"datafiles"`
}

type manifestDatafile struct {
	ID        string            `yaml:"id"`
	Filename  string            `yaml:"filename"`
	Size      string            `yaml:"size"`
	MD5Sum    string            `yaml:"md5sum"`
	SHA512Sum string            `yaml:"sha512sum"`
	Mimetype  string            `yaml:"mimetype"`
	Replicas  []manifestReplica `yaml:"replicas"`
}

type manifestReplica struct {
	URL      string `yaml:"url"`
	Protocol string `yaml:"protocol"`
}

func parseManifest(r io.Reader) ([]api.DatafileCreateRequest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("manifest is empty")
	}

	var doc manifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(doc.Datafiles) == 0 {
		return nil, errors.New("manifest lists no datafiles")
	}

	out := make([]api.DatafileCreateRequest, 0, len(doc.Datafiles))
	for i, df := range doc.Datafiles {
		if strings.TrimSpace(df.Filename) == "" {
			return nil, fmt.Errorf("datafiles[%d]: filename is required", i)
		}
		req := api.DatafileCreateRequest{
			ID:        df.ID,
			Filename:  df.Filename,
			Size:      df.Size,
			MD5Sum:    df.MD5Sum,
			SHA512Sum: df.SHA512Sum,
			Mimetype:  df.Mimetype,
		}
		for j, rep := range df.Replicas {
			if strings.TrimSpace(rep.URL) == "" {
				return nil, fmt.Errorf("datafiles[%d].replicas[%d]: url is required", i, j)
			}
			req.Replicas = append(req.Replicas, api.ReplicaSpec{URL: rep.URL, Protocol: rep.Protocol})
		}
		out = append(out, req)
	}
	return out, nil
}
