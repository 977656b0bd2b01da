// Package telegram implements the Telegram group transport on top of
// telebot.
//
// Inbound text messages are converted into the platform-agnostic message
// model and pushed to the inbox set during wiring. A message counts as
// addressed to the bot when it mentions the bot's username or one of the
// configured aliases, replies to one of the bot's messages, or arrives in a
// private chat.
//
// Message IDs have the form "<chat_id>:<message_id>" because Telegram only
// guarantees message IDs to be unique within a chat.
//
// The module registers itself as "channel.telegram" via init().
package telegram
