package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultTopicTemplate 事件主题，{project_id} 替换为项目ID
const DefaultTopicTemplate = "equipment/projects/{project_id}/config"

// MQTTSender common/mqtt.Client 的发布能力
type MQTTSender interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTPublisher 通过 MQTT 发布事件
type MQTTPublisher struct {
	sender        MQTTSender
	topicTemplate string
}

func NewMQTTPublisher(sender MQTTSender, topicTemplate string) *MQTTPublisher {
	if topicTemplate == "" {
		topicTemplate = DefaultTopicTemplate
	}
	return &MQTTPublisher{sender: sender, topicTemplate: topicTemplate}
}

// Topic 项目对应的主题
func (p *MQTTPublisher) Topic(projectID string) string {
	return strings.ReplaceAll(p.topicTemplate, "{project_id}", projectID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.sender.Publish(p.Topic(evt.ProjectID), false, payload)
}
