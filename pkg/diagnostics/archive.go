/*
Copyright ApeCloud, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/kube"
)

const (
	archiveContainer      = "archive"
	archiveMountPath      = "/mnt"
	defaultArchiveTimeout = time.Minute
)

// RemoteExecutor streams a remote command into the given writers.
type RemoteExecutor interface {
	Execute(ctx context.Context, url *url.URL, config *rest.Config, stdout, stderr io.Writer) error
}

type spdyExecutor struct{}

func (*spdyExecutor) Execute(ctx context.Context, url *url.URL, config *rest.Config, stdout, stderr io.Writer) error {
	exec, err := remotecommand.NewSPDYExecutor(config, "POST", url)
	if err != nil {
		return err
	}
	return exec.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: stdout,
		Stderr: stderr,
	})
}

// ArchivePersistentVolumes copies the content of every claim-backed volume in
// the namespace into <dir>/<namespace>-pv_<claim>.tar. Each copy runs through
// a short-lived helper pod mounting the claim read-only.
func (c *Collector) ArchivePersistentVolumes(ctx context.Context, namespace string) error {
	if err := os.MkdirAll(c.opts.Dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create diagnostics dir %s", c.opts.Dir)
	}
	claims, err := c.client.ClientSet.CoreV1().PersistentVolumeClaims(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to list claims in namespace %s", namespace)
	}
	var allErrs []error
	for _, claim := range claims.Items {
		if err = c.archiveClaim(ctx, namespace, claim.Name); err != nil {
			c.log.Error(err, "failed to archive volume", "namespace", namespace, "claim", claim.Name)
			allErrs = append(allErrs, err)
		}
	}
	return utilerrors.NewAggregate(allErrs)
}

func (c *Collector) archiveClaim(parent context.Context, namespace, claim string) error {
	ctx, cancel := context.WithTimeout(parent, c.opts.ArchiveTimeout.Duration)
	defer cancel()

	pod, err := c.client.ClientSet.CoreV1().Pods(namespace).Create(ctx, newArchivePod(namespace, claim, c.opts.ArchiveImage), metav1.CreateOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to create archive pod for claim %s", claim)
	}
	defer func() {
		gracePeriod := int64(0)
		_ = c.client.ClientSet.CoreV1().Pods(namespace).Delete(parent, pod.Name,
			metav1.DeleteOptions{GracePeriodSeconds: &gracePeriod})
	}()

	if err = c.opts.Policy.Wait(ctx, checks.PodRunning(c.client, namespace, pod.Name)); err != nil {
		return errors.Wrapf(err, "archive pod for claim %s never ran", claim)
	}

	path := filepath.Join(c.opts.Dir, archiveFileName(namespace, claim))
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer out.Close()

	var stderr bytes.Buffer
	command := []string{"tar", "cf", "-", "-C", archiveMountPath, "."}
	if err = c.execInPod(ctx, namespace, pod.Name, command, out, &stderr); err != nil {
		return errors.Wrapf(err, "failed to archive claim %s: %s", claim, stderr.String())
	}
	return nil
}

func (c *Collector) execInPod(ctx context.Context, namespace, pod string, command []string, stdout, stderr io.Writer) error {
	restClient, err := restClientFor(c.client.Config)
	if err != nil {
		return err
	}
	req := restClient.Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec")
	req.VersionedParams(&corev1.PodExecOptions{
		Container: archiveContainer,
		Command:   command,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
	}, scheme.ParameterCodec)

	return c.Exec.Execute(ctx, req.URL(), c.client.Config, stdout, stderr)
}

// restClientFor builds a core v1 REST client the way kubectl sets up its
// config before issuing pod subresource requests.
func restClientFor(config *rest.Config) (rest.Interface, error) {
	cfg := rest.CopyConfig(config)
	cfg.APIPath = "/api"
	cfg.GroupVersion = &corev1.SchemeGroupVersion
	cfg.NegotiatedSerializer = scheme.Codecs.WithoutConversion()
	return rest.RESTClientFor(cfg)
}

func newArchivePod(namespace, claim, image string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      fmt.Sprintf("pv-archive-%s", kube.RandomSuffix()),
			Labels:    map[string]string{kube.TestObjectLabelKey: "true"},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:    archiveContainer,
				Image:   image,
				Command: []string{"sleep", "3600"},
				VolumeMounts: []corev1.VolumeMount{{
					Name:      "target",
					MountPath: archiveMountPath,
					ReadOnly:  true,
				}},
			}},
			Volumes: []corev1.Volume{{
				Name: "target",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: claim,
						ReadOnly:  true,
					},
				},
			}},
		},
	}
}

func archiveFileName(namespace, claim string) string {
	return fmt.Sprintf("%s-pv_%s.tar", namespace, claim)
}
